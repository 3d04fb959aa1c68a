package classifier

import (
	"testing"

	"scrapemonitor/packages/domain"
)

func TestClassifyStatusRules(t *testing.T) {
	bodies := [][]byte{
		nil,
		[]byte(`{"id":1,"price":10}`),
		[]byte("<html><body>captcha</body></html>"),
		[]byte("plain"),
	}
	cases := []struct {
		status int
		want   domain.BlockType
	}{
		{403, domain.Forbidden},
		{429, domain.RateLimit},
		{503, domain.ServiceUnavailable},
	}
	for _, tc := range cases {
		for _, body := range bodies {
			blocked, kind := Classify(tc.status, body)
			if !blocked || kind != tc.want {
				t.Errorf("Classify(%d, %q) = (%v, %q), want (true, %q)", tc.status, body, blocked, kind, tc.want)
			}
		}
	}
}

func TestClassifyBody(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		blocked bool
		kind    domain.BlockType
	}{
		{"captcha lower", 200, "please solve the captcha", true, domain.Captcha},
		{"captcha upper", 200, "Please solve the CAPTCHA", true, domain.Captcha},
		{"captcha mixed", 200, "CaPtChA required", true, domain.Captcha},
		{"doctype", 200, "<!DOCTYPE html><p>hi</p>", true, domain.Captcha},
		{"html tag", 200, "  <HTML lang=en>", true, domain.Captcha},
		{"clean text", 200, "ok", false, domain.NotBlocked},
		{"json object", 200, `{"name":"widget","note":"captcha"}`, false, domain.NotBlocked},
		{"json array", 200, `[{"html":"<html>"}]`, false, domain.NotBlocked},
		{"broken json is text", 200, `{"captcha"`, true, domain.Captcha},
		{"empty", 200, "", false, domain.NotBlocked},
		{"whitespace", 200, "   \n", false, domain.NotBlocked},
		{"other error status", 500, "internal error", false, domain.NotBlocked},
		{"404 with html", 404, "<html>not found</html>", true, domain.Captcha},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			blocked, kind := Classify(tc.status, []byte(tc.body))
			if blocked != tc.blocked || kind != tc.kind {
				t.Errorf("Classify(%d, %q) = (%v, %q), want (%v, %q)", tc.status, tc.body, blocked, kind, tc.blocked, tc.kind)
			}
		})
	}
}

func TestClassifyNilBody(t *testing.T) {
	if blocked, kind := Classify(200, nil); blocked || kind != domain.NotBlocked {
		t.Errorf("Classify(200, nil) = (%v, %q)", blocked, kind)
	}
}
