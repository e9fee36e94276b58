// Package ngrok exposes the local status server through an ngrok tunnel.
package ngrok

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	ngrok "golang.ngrok.com/ngrok"
	"golang.ngrok.com/ngrok/config"
)

const minBasicAuthPassLen = 8

type Options struct {
	LocalAddr     string
	Authtoken     string
	Region        string
	Domain        string
	BasicAuthUser string
	BasicAuthPass string
}

// LocalOptions points the tunnel at the status server listening on port.
func LocalOptions(port int) Options {
	return Options{LocalAddr: fmt.Sprintf("http://127.0.0.1:%d", port)}
}

func (o Options) validate() (*url.URL, error) {
	if o.LocalAddr == "" {
		return nil, errors.New("ngrok local address is required")
	}
	backend, err := url.Parse(o.LocalAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid ngrok local address: %w", err)
	}
	if (o.BasicAuthUser == "") != (o.BasicAuthPass == "") {
		return nil, errors.New("ngrok basic auth needs both user and password")
	}
	if o.BasicAuthPass != "" && len(o.BasicAuthPass) < minBasicAuthPassLen {
		return nil, fmt.Errorf("ngrok basic auth password must have at least %d characters", minBasicAuthPassLen)
	}
	return backend, nil
}

func (o Options) endpointOptions() []config.HTTPEndpointOption {
	httpOpts := make([]config.HTTPEndpointOption, 0, 2)
	if o.Domain != "" {
		httpOpts = append(httpOpts, config.WithDomain(o.Domain))
	}
	if o.BasicAuthUser != "" {
		httpOpts = append(httpOpts, config.WithBasicAuth(o.BasicAuthUser, o.BasicAuthPass))
	}
	return httpOpts
}

func (o Options) connectOptions() []ngrok.ConnectOption {
	connectOpts := make([]ngrok.ConnectOption, 0, 2)
	if o.Authtoken != "" {
		connectOpts = append(connectOpts, ngrok.WithAuthtoken(o.Authtoken))
	} else if os.Getenv("NGROK_AUTHTOKEN") != "" {
		connectOpts = append(connectOpts, ngrok.WithAuthtokenFromEnv())
	}
	if o.Region != "" {
		connectOpts = append(connectOpts, ngrok.WithRegion(o.Region))
	}
	return connectOpts
}

type Tunnel struct {
	forwarder ngrok.Forwarder
}

func Start(ctx context.Context, opts Options) (*Tunnel, error) {
	backend, err := opts.validate()
	if err != nil {
		return nil, err
	}

	fwd, err := ngrok.ListenAndForward(ctx, backend, config.HTTPEndpoint(opts.endpointOptions()...), opts.connectOptions()...)
	if err != nil {
		return nil, fmt.Errorf("starting ngrok tunnel: %w", err)
	}

	return &Tunnel{forwarder: fwd}, nil
}

func (t *Tunnel) URL() string {
	if t == nil || t.forwarder == nil {
		return ""
	}
	return t.forwarder.URL()
}

func (t *Tunnel) Close() error {
	if t == nil || t.forwarder == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.forwarder.CloseWithContext(ctx)
}
