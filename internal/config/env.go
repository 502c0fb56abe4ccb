package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment keys read by [ApplyEnv].
const (
	EnvRoot       = "DARFIX_ROOT"
	EnvFfprobe    = "DARFIX_FFPROBE"
	EnvFfmpeg     = "DARFIX_FFMPEG"
	EnvWorkers    = "DARFIX_WORKERS"
	EnvOutputMode = "DARFIX_OUTPUT_MODE"
	EnvS3Bucket   = "DARFIX_S3_BUCKET"
	EnvS3Prefix   = "DARFIX_S3_PREFIX"
	EnvS3Region   = "DARFIX_S3_REGION"
	EnvLogFile    = "DARFIX_LOG"
)

// LookupFunc matches the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// EnvLookup reads the given .env files (missing files are ignored) and
// returns a lookup that prefers the process environment over file values.
// Earlier files win over later ones. The process environment is not
// modified.
func EnvLookup(files ...string) (LookupFunc, error) {
	fileVals := map[string]string{}
	for _, p := range files {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		vals, err := godotenv.Read(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		for k, v := range vals {
			if _, seen := fileVals[k]; !seen {
				fileVals[k] = v
			}
		}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok
	}, nil
}

// ApplyEnv overlays DARFIX_* values onto cfg. Empty values are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	if v, ok := get(EnvRoot); ok {
		cfg.RootDir = NormalizeDirArg(v)
	}
	if v, ok := get(EnvFfprobe); ok {
		cfg.FfprobePath = v
	}
	if v, ok := get(EnvFfmpeg); ok {
		cfg.FfmpegPath = v
	}
	if v, ok := get(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be a whole number (got %q)", EnvWorkers, v)
		}
		cfg.Workers = n
	}
	if v, ok := get(EnvOutputMode); ok {
		if err := (&outputModeValue{&cfg.OutputMode}).Set(v); err != nil {
			return fmt.Errorf("%s: %w", EnvOutputMode, err)
		}
	}
	if v, ok := get(EnvS3Bucket); ok {
		cfg.S3Bucket = v
	}
	if v, ok := get(EnvS3Prefix); ok {
		cfg.S3Prefix = v
	}
	if v, ok := get(EnvS3Region); ok {
		cfg.S3Region = v
	}
	if v, ok := get(EnvLogFile); ok {
		cfg.LogFile = v
	}
	return nil
}
