package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lasagna"
	"lasagna/internal/authpolicy"
	"lasagna/internal/config"
	"lasagna/internal/credential"
	"lasagna/internal/logging"
	"lasagna/issuer"
	"lasagna/tokenfile"
)

type inspectCommand struct {
	app  *app
	Args struct {
		Token string `positional-arg-name:"token" required:"yes"`
	} `positional-args:"yes"`
}

func (c *inspectCommand) Execute([]string) error {
	claims, err := credential.Decode(c.Args.Token)
	if err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	out := c.app.out
	fmt.Fprintf(out, "subject:  %s\n", orDash(claims.Subject))
	fmt.Fprintf(out, "issuer:   %s\n", orDash(claims.Issuer))
	fmt.Fprintf(out, "issued:   %s\n", formatDate(claims.IssuedAt))
	fmt.Fprintf(out, "expires:  %s\n", formatDate(claims.ExpiresAt))
	if claims.ChannelExpiresAt != nil {
		fmt.Fprintf(out, "channel:  %s\n", formatDate(claims.ChannelExpiresAt))
	}
	status := "valid"
	if credential.IsInvalid(c.Args.Token) {
		status = "stale"
	}
	fmt.Fprintf(out, "status:   %s\n", status)
	return nil
}

type topicCommand struct {
	app  *app
	Args struct {
		Topic string `positional-arg-name:"topic" required:"yes"`
	} `positional-args:"yes"`
}

func (c *topicCommand) Execute([]string) error {
	client := lasagna.New(nil, lasagna.WithURL(c.app.opts.SocketURL), lasagna.WithLogger(c.app.logger))
	defer client.Close()

	if client.ShouldAuth(c.Args.Topic) {
		fmt.Fprintf(c.app.out, "%s: credential required\n", c.Args.Topic)
	} else {
		fmt.Fprintf(c.app.out, "%s: exempt (%s)\n", c.Args.Topic, authpolicy.ExemptMarker)
	}
	fmt.Fprintf(c.app.out, "socket: %s\n", client.URL())
	return nil
}

type fetchCommand struct {
	app    *app
	Topic  string   `long:"topic" description:"Fetch a channel credential for this topic"`
	Params []string `long:"param" description:"Request param as key=value (repeatable)"`
	Out    string   `long:"out" description:"Write the credential to this token file instead of stdout"`
}

func (c *fetchCommand) Execute([]string) error {
	accessor, err := c.app.accessor()
	if err != nil {
		return err
	}
	params, err := parseParams(c.Params)
	if err != nil {
		return err
	}
	req := lasagna.CredentialRequest{Kind: lasagna.KindSocket, Params: params}
	if c.Topic != "" {
		req.Kind = lasagna.KindChannel
		req.Topic = c.Topic
	}

	token, err := accessor(c.app.ctx, req)
	if err != nil {
		return fmt.Errorf("fetch %s credential: %w", req.Kind, err)
	}
	if credential.IsInvalid(token) {
		return errors.New("fetched credential is already stale")
	}

	if c.Out == "" {
		_, err := fmt.Fprintln(c.app.out, token)
		return err
	}
	if err := tokenfile.Write(c.Out, token); err != nil {
		return err
	}
	c.app.logger.Info("credential written", logging.Field("path", c.Out), logging.Field("kind", req.Kind.String()))
	return nil
}

type saveCommand struct {
	app *app
}

func (c *saveCommand) Execute([]string) error {
	if err := config.SaveSettings(config.SettingsFromOptions(c.app.opts)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	path, _ := config.SettingsPath()
	fmt.Fprintf(c.app.out, "saved %s\n", path)
	return nil
}

// accessor builds the credential source named by the options.
func (a *app) accessor() (lasagna.CredentialAccessor, error) {
	if err := config.ValidateCredentialSource(a.opts); err != nil {
		return nil, err
	}
	if a.opts.TokenFile != "" {
		return tokenfile.New(a.opts.TokenFile, a.logger).Accessor(), nil
	}
	return issuer.Client{
		URL:         a.opts.IssuerURL,
		BearerToken: a.opts.IssuerToken,
		Logger:      a.logger,
	}.Accessor(), nil
}

func parseParams(pairs []string) (lasagna.Params, error) {
	params := lasagna.Params{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q: expected key=value", pair)
		}
		params = params.With(key, value)
	}
	return params, nil
}

func formatDate(d *jwt.NumericDate) string {
	if d == nil {
		return "-"
	}
	return d.UTC().Format(time.RFC3339)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
