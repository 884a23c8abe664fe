// Package webfinger implements the data model and codecs of WebFinger (RFC 7033).
//
// A query is described by a Request, built from a Resource such as acct:carol@example.com,
// an optional Host and any number of link relation types (Rel). Request.URL turns it into the
// URL a client sends a GET to, and ParseQuery turns the query string a server receives back
// into a Request.
//
// The answer is a JRD document, modelled by Response and Link. ParseResponse decodes one and
// Response.MarshalJSON encodes one. Property values are either strings or null, and a missing
// key means the property is absent, so the three cases stay distinguishable.
//
// Sending requests lives in package client; the wfhttp and wfecho packages serve Responses
// from net/http and echo handlers.
package webfinger
