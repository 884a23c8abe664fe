// Package store holds the JRD records served by the reference server.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/0dayfall/webfinger"
)

// Store looks up JRD records by subject or alias.
type Store interface {
	// Lookup returns the record whose subject or one of whose aliases is resource. It returns
	// an error matching webfinger.ErrResourceNotFound when there is none.
	Lookup(ctx context.Context, resource webfinger.Resource) (webfinger.Response, error)
	// Put stores resp, replacing any record with the same subject.
	Put(ctx context.Context, resp webfinger.Response) error
	Ping(ctx context.Context) error
	Close() error
}

// ErrCorruptRecord is returned when a stored document no longer parses as a JRD.
var ErrCorruptRecord = errors.New("store: corrupt record")

func notFound(resource webfinger.Resource) error {
	return fmt.Errorf("%w: %s", webfinger.ErrResourceNotFound, resource)
}

// Seed returns the record of the demo account served by a fresh install.
func Seed(domain string) (webfinger.Response, error) {
	profile, err := webfinger.NewLinkBuilder(webfinger.RelProfilePage.String()).
		Type("text/html").
		Href("https://" + domain + "/~carol").
		Build()
	if err != nil {
		return webfinger.Response{}, err
	}
	avatar, err := webfinger.NewLinkBuilder(webfinger.RelAvatar.String()).
		Type("image/jpeg").
		Href("https://" + domain + "/~carol/avatar.jpg").
		Build()
	if err != nil {
		return webfinger.Response{}, err
	}
	self, err := webfinger.NewLinkBuilder(webfinger.RelSelf.String()).
		Type("application/activity+json").
		Href("https://" + domain + "/users/carol").
		Build()
	if err != nil {
		return webfinger.Response{}, err
	}
	return webfinger.NewResponseBuilder("acct:carol@"+domain).
		Alias("https://"+domain+"/~carol").
		Property("http://schema.org/name", "Carol").
		Link(profile, avatar, self).
		Build()
}
