package httperrors

import (
	"fmt"
	"net"
	"syscall"
	"testing"

	"bulkctl/cli/internal/errors"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"dns", &net.DNSError{Err: "no such host", Name: "acme.my.salesforce.com"}, DNS},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ConnectionRefused},
		{"refused wrapped", errors.Wrap(errors.Transport, "create job", fmt.Errorf("dial: %w", syscall.ECONNREFUSED)), ConnectionRefused},
		{"deadline", errors.Wrap(errors.Cancelled, "poll", fmt.Errorf("context deadline exceeded")), Timeout},
		{"tls", fmt.Errorf("x509: certificate signed by unknown authority"), TLS},
		{"server", errors.Remote("job status", 503, nil), Server},
		{"client status is not a server error", errors.Remote("job status", 404, nil), Generic},
		{"other", fmt.Errorf("boom"), Generic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestDescribeNamesHost(t *testing.T) {
	out := Describe(&net.DNSError{Err: "no such host"}, "creating the job", "https://acme.my.salesforce.com/services/data")
	assert.Contains(t, out, "acme.my.salesforce.com")
	assert.Contains(t, out, "creating the job")
}

func TestExtractHostFromURL(t *testing.T) {
	assert.Equal(t, "acme.my.salesforce.com", ExtractHostFromURL("https://acme.my.salesforce.com/x"))
	assert.Equal(t, "the server", ExtractHostFromURL("::bad"))
}
