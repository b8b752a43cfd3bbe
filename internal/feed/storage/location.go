package storage

import (
	"fmt"
	"strings"
)

type Scheme string

const (
	SchemeCSV      Scheme = "csv"
	SchemeRocks    Scheme = "rocks"
	SchemeKafka    Scheme = "kafka"
	SchemePostgres Scheme = "postgres"
	SchemeS3       Scheme = "s3"
)

// Location is a parsed dataset URI. Target is everything after "scheme://";
// for postgres it is the full DSN, for s3 it is "bucket/prefix".
type Location struct {
	Scheme Scheme
	Target string
}

// ParseLocation accepts csv://path, rocks://dir, kafka://topic, postgres://dsn,
// s3://bucket/prefix or a bare path (CSV).
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("%w: empty location", ErrUnsupported)
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Location{Scheme: SchemeCSV, Target: raw}, nil
	}
	switch s := Scheme(strings.ToLower(scheme)); s {
	case SchemeCSV, SchemeRocks, SchemeKafka, SchemeS3:
		if rest == "" {
			return Location{}, fmt.Errorf("%w: %q has no target", ErrUnsupported, raw)
		}
		return Location{Scheme: s, Target: rest}, nil
	case SchemePostgres, "postgresql":
		return Location{Scheme: SchemePostgres, Target: raw}, nil
	default:
		return Location{}, fmt.Errorf("%w: scheme %q", ErrUnsupported, scheme)
	}
}

func (l Location) String() string {
	switch l.Scheme {
	case SchemePostgres:
		return redactDSN(l.Target)
	case SchemeCSV:
		return l.Target
	default:
		return string(l.Scheme) + "://" + l.Target
	}
}

// Bucket splits an s3 target into bucket and key prefix.
func (l Location) Bucket() (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(l.Target, "/")
	return bucket, strings.Trim(prefix, "/")
}

func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	sep := strings.Index(dsn, "://")
	if at < 0 || sep < 0 || at < sep {
		return dsn
	}
	userinfo := dsn[sep+3 : at]
	if user, _, ok := strings.Cut(userinfo, ":"); ok {
		return dsn[:sep+3] + user + ":***" + dsn[at:]
	}
	return dsn
}
