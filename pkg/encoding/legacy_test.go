package encoding

import "testing"

func TestLineToUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"ascii", []byte("TEXTURE house.png"), "TEXTURE house.png"},
		{"utf8 kept", []byte("ATTR_manip_command hand sim/x Türe"), "ATTR_manip_command hand sim/x Türe"},
		{"bom stripped", []byte("\xef\xbb\xbfI"), "I"},
		{"cp1252 decoded", []byte("tooltip T\xfcre"), "tooltip Türe"},
		{"cp1252 euro", []byte("\x80"), "€"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LineToUTF8(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUTF8ToLegacy(t *testing.T) {
	got := UTF8ToLegacy("Türe")
	if string(got) != "T\xfcre" {
		t.Errorf("got %q", got)
	}
	if LineToUTF8(got) != "Türe" {
		t.Error("legacy encoding should round trip")
	}
}

func TestNormalizeAssetPath(t *testing.T) {
	if got := NormalizeAssetPath(`..\textures\\roof.png`); got != "../textures/roof.png" {
		t.Errorf("got %q", got)
	}
}
