package infra

import (
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// WorkDir expands ~ in path and makes sure the directory exists.
func WorkDir(path string) (string, error) {
	workDir, err := homedir.Expand(path)
	if err != nil {
		return "", errors.WithMessage(err, "cant expand work dir")
	}
	if err = os.MkdirAll(workDir, os.ModePerm); err != nil {
		return "", errors.WithMessage(err, "cant create work dir")
	}
	return workDir, nil
}
