package protocol

import "testing"

func TestNormalizeUID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"colon separated", "04:A1:B2:C3", "04a1b2c3", false},
		{"compact lowercase", "04a1b2c3", "04a1b2c3", false},
		{"compact uppercase", "04A1B2C3", "04a1b2c3", false},
		{"space separated", "04 A1 B2 C3", "04a1b2c3", false},
		{"dash separated", "04-A1-B2-C3", "04a1b2c3", false},
		{"seven byte uid", "04:a1:b2:c3:d4:e5:f6", "04a1b2c3d4e5f6", false},
		{"empty", "", "", true},
		{"invalid characters", "04:GG:B2:C3", "", true},
		{"odd length", "04a1b2c", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeUID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeUID(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeUID(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeUID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestInferTechnology(t *testing.T) {
	tests := []struct {
		cardType string
		want     string
	}{
		{"MIFARE Classic 1K", "ISO14443A"},
		{"MIFARE Ultralight", "ISO14443A"},
		{"NTAG215", "ISO14443A"},
		{"DESFire", "ISO14443A"},
		{"FeliCa", "Unknown"},
	}

	for _, tt := range tests {
		if got := InferTechnology(tt.cardType); got != tt.want {
			t.Errorf("InferTechnology(%q) = %q, want %q", tt.cardType, got, tt.want)
		}
	}
}
