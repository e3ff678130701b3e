package config

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/mitchellh/go-homedir"
	"github.com/nguyengg/xchm/fingerprint"
)

const (
	// DefaultRoot is the bookshelf root when none is configured.
	DefaultRoot = "~/.xchm/bookshelf"
	// DefaultVariableFont is the proportional font of a book when none is configured.
	DefaultVariableFont = "Sans 12"
	// DefaultFixedFont is the monospace font of a book when none is configured.
	DefaultFixedFont = "Monospace 12"
)

// BookshelfConfig contains the [bookshelf] settings.
type BookshelfConfig struct {
	// Root is the directory holding one extraction directory per book, with "~" expanded.
	Root string
	// Fingerprint is the digest naming the extraction directories.
	Fingerprint fingerprint.Algorithm
}

// ForBookshelf returns the bookshelf configuration.
//
// Loader.Root takes precedence over the configured root. An unknown fingerprint algorithm is an error.
func (l *Loader) ForBookshelf() (c BookshelfConfig, err error) {
	sec := l.section("bookshelf")

	root := l.Root
	if root == "" {
		root = sec.Key("root").MustString(DefaultRoot)
	}
	if c.Root, err = homedir.Expand(root); err != nil {
		return c, err
	}

	c.Fingerprint, err = fingerprint.ParseAlgorithm(sec.Key("fingerprint").String())
	return c, err
}

// ForBookshelf calls Loader.ForBookshelf on the DefaultLoader instance.
func ForBookshelf() (BookshelfConfig, error) {
	return DefaultLoader.ForBookshelf()
}

// FontsConfig contains the [fonts] settings applied to books that have none.
type FontsConfig struct {
	Variable string
	Fixed    string
}

// ForFonts returns the default fonts.
func (l *Loader) ForFonts() (c FontsConfig) {
	sec := l.section("fonts")

	c.Variable = sec.Key("variable").MustString(DefaultVariableFont)
	c.Fixed = sec.Key("fixed").MustString(DefaultFixedFont)

	return
}

// ForFonts calls Loader.ForFonts on the DefaultLoader instance.
func ForFonts() FontsConfig {
	return DefaultLoader.ForFonts()
}

// BucketConfig contains configuration settings for a specific bucket.
type BucketConfig struct {
	Bucket              string
	AWSProfile          string
	ExpectedBucketOwner *string
}

// ForBucket returns configuration for a specific bucket.
//
// A section named "s3://bucket" overrides the [s3] section for that bucket.
func (l *Loader) ForBucket(bucket string) (c BucketConfig) {
	c.Bucket = bucket
	c.AWSProfile = l.section("s3").Key("profile").String()

	sec, err := l.cfg.GetSection("s3://" + bucket)
	if err != nil {
		return c
	}

	if k, err := sec.GetKey("aws-profile"); err == nil {
		c.AWSProfile = k.Value()
	}
	if k, err := sec.GetKey("expected-bucket-owner"); err == nil {
		c.ExpectedBucketOwner = aws.String(k.Value())
	}

	return
}

// ForBucket calls Loader.ForBucket on the DefaultLoader instance.
func ForBucket(bucket string) (c BucketConfig) {
	return DefaultLoader.ForBucket(bucket)
}
