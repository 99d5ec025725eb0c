package odoogate

import (
	"strings"
	"testing"
)

func TestValidateLoginRequest(t *testing.T) {
	cases := []struct {
		name    string
		req     loginRequest
		wantErr bool
	}{
		{"valid email login", loginRequest{Username: "u@x.com", Password: "p"}, false},
		{"plain username rejected", loginRequest{Username: "admin", Password: "p"}, true},
		{"empty username", loginRequest{Username: "", Password: "p"}, true},
		{"whitespace username", loginRequest{Username: "   ", Password: "p"}, true},
		{"empty password", loginRequest{Username: "u@x.com", Password: ""}, true},
		{"malformed email", loginRequest{Username: "u@@x", Password: "p"}, true},
		{"email with spaces", loginRequest{Username: "u @x.com", Password: "p"}, true},
		{"username too long", loginRequest{Username: strings.Repeat("a", 250) + "@x.com", Password: "p"}, true},
		{"password too long", loginRequest{Username: "u@x.com", Password: strings.Repeat("p", 129)}, true},
		{"password at limit", loginRequest{Username: "u@x.com", Password: strings.Repeat("p", 128)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateLoginRequest(&tc.req)
			if (err != nil) != tc.wantErr {
				t.Errorf("validateLoginRequest() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
