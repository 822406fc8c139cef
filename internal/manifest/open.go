// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ObjectGetter is the part of the S3 client used to fetch manifests.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// IsS3 reports whether location names an S3 object.
func IsS3(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

func parseS3URL(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 location %q: %w", location, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid S3 location %q: want s3://bucket/key", location)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("invalid S3 location %q: missing object key", location)
	}
	return u.Host, key, nil
}

// Open returns a reader for location, which is either a local path or an
// s3://bucket/key URL. s3c is only used for S3 locations. A missing object
// yields an error matching fs.ErrNotExist either way.
func Open(ctx context.Context, location string, s3c ObjectGetter) (io.ReadCloser, error) {
	if !IsS3(location) {
		return os.Open(location)
	}
	if s3c == nil {
		return nil, fmt.Errorf("no S3 client available for %s", location)
	}

	bucket, key, err := parseS3URL(location)
	if err != nil {
		return nil, err
	}
	out, err := s3c.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("fetching %s: %w", location, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("fetching %s: %w", location, err)
	}
	return out.Body, nil
}

func isNoSuchKey(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Load opens and parses the manifest at location.
func Load(ctx context.Context, location string, s3c ObjectGetter) (*Manifest, error) {
	rc, err := Open(ctx, location, s3c)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()
	return Parse(rc)
}
