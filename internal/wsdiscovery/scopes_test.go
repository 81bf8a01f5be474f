package wsdiscovery

import (
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dlclark/regexp2"
)

func TestParseModel(t *testing.T) {
	tests := []struct {
		name   string
		scopes string
		want   string
	}{
		{"hardware first", "onvif://www.onvif.org/hardware/X500 onvif://www.onvif.org/name/Axis", "X500"},
		{"hardware last", "onvif://www.onvif.org/name/Axis onvif://www.onvif.org/hardware/M3045-V", "M3045-V"},
		{"percent encoded", "onvif://www.onvif.org/hardware/DS-2CD2%20Series", "DS-2CD2 Series"},
		{"first of several", "onvif://www.onvif.org/hardware/A onvif://www.onvif.org/hardware/B", "A"},
		{"invalid escape kept raw", "onvif://www.onvif.org/hardware/X%zz", "X%zz"},
		{"no hardware scope", "onvif://www.onvif.org/name/Axis onvif://www.onvif.org/type/video_encoder", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseModel(tt.scopes); got != tt.want {
				t.Errorf("ParseModel(%q) = %q, want %q", tt.scopes, got, tt.want)
			}
		})
	}
}

func TestParseManufacturer(t *testing.T) {
	tests := []struct {
		name   string
		scopes string
		want   string
	}{
		{
			name:   "mfr scope verbatim",
			scopes: "onvif://www.onvif.org/mfr/Axis%20Communications",
			want:   "Axis Communications",
		},
		{
			name:   "mfr wins over name",
			scopes: "onvif://www.onvif.org/name/Foo%20Bar onvif://www.onvif.org/mfr/Hikvision%20Digital",
			want:   "Hikvision Digital",
		},
		{
			name:   "manufacturer scope",
			scopes: "onvif://www.onvif.org/manufacturer/Bosch%20Security onvif://www.onvif.org/name/Other",
			want:   "Bosch Security",
		},
		{
			name:   "name truncated to first word",
			scopes: "onvif://www.onvif.org/hardware/X500 onvif://www.onvif.org/name/Axis%20Communications",
			want:   "Axis",
		},
		{
			name:   "name without space",
			scopes: "onvif://www.onvif.org/name/Dahua",
			want:   "Dahua",
		},
		{
			name:   "no mfr or name",
			scopes: "onvif://www.onvif.org/hardware/X500 onvif://www.onvif.org/location/lobby",
			want:   "",
		},
		{
			name:   "empty",
			scopes: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseManufacturer(tt.scopes); got != tt.want {
				t.Errorf("ParseManufacturer(%q) = %q, want %q", tt.scopes, got, tt.want)
			}
		})
	}
}

func TestParseManufacturer_HostileInput(t *testing.T) {
	// A long scope must come back promptly and must not panic
	scopes := "onvif://www.onvif.org/name/" + strings.Repeat("a", 1<<16)
	if got := ParseManufacturer(scopes); len(got) != 1<<16 {
		t.Errorf("len(ParseManufacturer()) = %d, want %d", len(got), 1<<16)
	}
}

func TestParseManufacturer_MatchTimeout(t *testing.T) {
	// A pattern that backtracks catastrophically on an unterminated run
	slow := regexp2.MustCompile(`name/(?<value>(a+)+b)`, regexp2.None)
	slow.MatchTimeout = 50 * time.Millisecond

	saved := namePattern
	namePattern = slow
	t.Cleanup(func() { namePattern = saved })

	token := "onvif://www.onvif.org/name/" + strings.Repeat("a", 40) + "!"

	start := time.Now()
	if got, ok := scopeValue(namePattern, token); ok || got != "" {
		t.Errorf("scopeValue() = %q, %v, want \"\", false", got, ok)
	}
	if got := ParseManufacturer(token); got != "" {
		t.Errorf("ParseManufacturer() = %q, want \"\"", got)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timed out matches took %v, want them bounded by MatchTimeout", elapsed)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"whitespace only", " \t\n ", []string{}},
		{"single", "http://a", []string{"http://a"}},
		{"ordered with duplicates", "b a b", []string{"b", "a", "b"}},
		{"mixed whitespace", "  dn:NetworkVideoTransmitter\n\ttds:Device ", []string{"dn:NetworkVideoTransmitter", "tds:Device"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitList(tt.input)
			if got == nil {
				t.Fatal("SplitList() returned nil, want non-nil slice")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitList(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewDevice(t *testing.T) {
	match := ProbeMatch{
		EndpointReference: EndpointReference{Address: " urn:uuid:a1b2 "},
		Types:             "dn:NetworkVideoTransmitter",
		Scopes:            "onvif://www.onvif.org/hardware/X500 onvif://www.onvif.org/name/Axis%20Communications",
		XAddrs:            "http://192.0.2.9/onvif/device_service",
		MetadataVersion:   "1",
	}
	// Address comes from the UDP source, not the payload
	src := &net.UDPAddr{IP: net.ParseIP("198.51.100.7"), Port: 3702}

	dev := NewDevice(match, src)

	if dev.Model != "X500" {
		t.Errorf("Model = %q, want X500", dev.Model)
	}
	if dev.Mfr != "Axis" {
		t.Errorf("Mfr = %q, want Axis", dev.Mfr)
	}
	if !reflect.DeepEqual(dev.XAddresses, []string{"http://192.0.2.9/onvif/device_service"}) {
		t.Errorf("XAddresses = %v", dev.XAddresses)
	}
	if !reflect.DeepEqual(dev.Types, []string{"dn:NetworkVideoTransmitter"}) {
		t.Errorf("Types = %v", dev.Types)
	}
	if len(dev.Scopes) != 2 {
		t.Errorf("len(Scopes) = %d, want 2", len(dev.Scopes))
	}
	if dev.Address != "198.51.100.7" {
		t.Errorf("Address = %q, want 198.51.100.7", dev.Address)
	}
	if dev.EndpointReference != "urn:uuid:a1b2" {
		t.Errorf("EndpointReference = %q, want urn:uuid:a1b2", dev.EndpointReference)
	}
}

func TestNewDevice_NilSource(t *testing.T) {
	dev := NewDevice(ProbeMatch{Scopes: "onvif://www.onvif.org/name/x"}, nil)
	if dev.Address != "" {
		t.Errorf("Address = %q, want empty", dev.Address)
	}
	if dev.XAddresses == nil || len(dev.XAddresses) != 0 {
		t.Errorf("XAddresses = %#v, want empty non-nil", dev.XAddresses)
	}
}
