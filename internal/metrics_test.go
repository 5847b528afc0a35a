package internal

import (
	"errors"
	"net/http"
	"testing"
)

func TestFailureReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&InvalidResponseStatusError{Head: &http.Response{Status: "200 OK", StatusCode: 200}}, "status"},
		{errors.New("i/o timeout"), "timeout"},
		{errors.New("x509: certificate signed by unknown authority"), "tls"},
		{errors.New("lookup host: no such host"), "dns"},
		{errors.New("connection refused"), "refused"},
		{errors.New("boom"), "other"},
		{nil, "unknown"},
	}

	for _, tc := range cases {
		if got := failureReason(tc.err); got != tc.want {
			t.Fatalf("failureReason(%v)=%q want %q", tc.err, got, tc.want)
		}
	}
}

func TestToPromLabels(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"host=example.com", `host="example.com"`},
		{"host=a,reason=status", `host="a",reason="status"`},
		{`host=we"ird`, `host="we\"ird"`},
	}

	for _, tc := range cases {
		if got := toPromLabels(tc.in); got != tc.want {
			t.Fatalf("toPromLabels(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}
