package youtube

import "testing"

func TestParseChannelURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		kind    ChannelRefKind
		value   string
		wantErr bool
	}{
		{"bare channel id", "UCabcdefghijklmnopqrstuv", RefChannelID, "UCabcdefghijklmnopqrstuv", false},
		{"bare handle", "@SomeCreator", RefHandle, "@SomeCreator", false},
		{"channel url", "https://www.youtube.com/channel/UCabcdefghijklmnopqrstuv", RefChannelID, "UCabcdefghijklmnopqrstuv", false},
		{"handle url", "https://youtube.com/@SomeCreator", RefHandle, "@SomeCreator", false},
		{"handle url no scheme", "youtube.com/@SomeCreator", RefHandle, "@SomeCreator", false},
		{"user url", "https://www.youtube.com/user/oldschoolname", RefUsername, "oldschoolname", false},
		{"custom url", "https://www.youtube.com/c/CustomSlug", RefCustom, "CustomSlug", false},
		{"mobile host", "https://m.youtube.com/@SomeCreator", RefHandle, "@SomeCreator", false},
		{"empty", "", "", "", true},
		{"wrong host", "https://vimeo.com/@SomeCreator", "", "", true},
		{"bad channel id in url", "https://www.youtube.com/channel/notanid", "", "", true},
		{"bare video path", "https://www.youtube.com/watch", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseChannelURL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseChannelURL(%q) expected error, got %+v", tt.raw, ref)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseChannelURL(%q) returned error: %v", tt.raw, err)
			}
			if ref.Kind != tt.kind || ref.Value != tt.value {
				t.Errorf("ParseChannelURL(%q) = {%s %s}, want {%s %s}",
					tt.raw, ref.Kind, ref.Value, tt.kind, tt.value)
			}
		})
	}
}
