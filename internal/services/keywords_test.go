package services

import (
	"bytes"
	"image/png"
	"reflect"
	"testing"
)

func TestFoldAccents(t *testing.T) {
	tests := map[string]string{
		"Canción":       "cancion",
		"MONTAÑA":       "montana",
		"über café":     "uber cafe",
		"plain ascii 1": "plain ascii 1",
	}
	for in, want := range tests {
		if got := FoldAccents(in); got != want {
			t.Errorf("FoldAccents(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want []string
	}{
		{
			name: "frequency then first appearance",
			text: "El océano azul y el cielo azul sobre la playa del océano",
			n:    3,
			want: []string{"oceano", "azul", "cielo"},
		},
		{
			name: "english stop words",
			text: "A city skyline at night with the lights of the city",
			n:    3,
			want: []string{"city", "skyline", "night"},
		},
		{
			name: "only stop words",
			text: "de la y el",
			n:    3,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractKeywords(tt.text, tt.n)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlaceholderRender(t *testing.T) {
	p := NewPlaceholderService()

	data, err := p.Render(2, "Montañas nevadas al amanecer", "es", 108, 192)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 108 || b.Dy() != 192 {
		t.Errorf("unexpected size %v", b)
	}

	// The top-left corner carries the gradient start colour.
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 < 0x60 || r>>8 > 0x70 || g>>8 < 0x78 || b>>8 < 0xe0 {
		t.Errorf("unexpected gradient start colour %x %x %x", r>>8, g>>8, b>>8)
	}

	if _, err := p.Render(0, "x", "en", 0, 10); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestAsciiOnly(t *testing.T) {
	if got := asciiOnly("Canción Ñu 日本"); got != "Cancion Nu " {
		t.Errorf("asciiOnly = %q", got)
	}
}
