// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package seqconfig creates a bigseq session from a shared
// configuration. It uses the configuration mechanism in package
// github.com/grailbio/base/config and reads a default profile from
// $HOME/.bigseq/config. A profile configures the "bigseq" instance,
// for example:
//
//	param bigseq (
//		ranks = 8
//		threads = 4
//		system = bigmachine/ec2system
//	)
//
// Profiles may be provisioned using the bigseq setup-ec2 command.
package seqconfig

import (
	"fmt"
	"os"
	"sort"

	"github.com/grailbio/base/config"
	"github.com/grailbio/base/errors"

	// Used to provide ec2system.System bigmachines.
	_ "github.com/grailbio/bigmachine/ec2system"
	"github.com/grailbio/bigseq/exec"
)

// Path determines the location of the default bigseq profile.
var Path = os.ExpandEnv("$HOME/.bigseq/config")

// Load reads the profile at path, applies the provided parameter
// overrides (keyed by parameter name, e.g., "ranks"), and returns the
// session it configures. A missing profile yields the default
// configuration.
func Load(path string, overrides map[string]string) (*exec.Session, error) {
	profile, err := Profile(path)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := profile.Set("bigseq."+k, overrides[k]); err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("bigseq.%s", k), err)
		}
	}
	var sess *exec.Session
	if err := profile.Instance("bigseq", &sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Profile reads the profile at path. A missing profile yields an
// empty one.
func Profile(path string) (*config.Profile, error) {
	profile := config.New()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return profile, nil
	}
	if err != nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()
	if err := profile.Parse(f); err != nil {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("parse %s", path), err)
	}
	return profile, nil
}
