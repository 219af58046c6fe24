// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package seqflags provides flag support for bigseq command line
// applications: the system on which ranks run, the size of the rank
// group, and the status displays of a session.
package seqflags

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/bigmachine/ec2system"
	"github.com/grailbio/bigseq/exec"
)

var (
	mu        sync.Mutex
	providers = map[string]Provider{} // protected by mu
	profiles  = map[string]string{}   // protected by mu
)

// Provider provides the systems on which bigseq ranks are run. A
// provider is configured by setting options via Set.
type Provider interface {
	// Name returns the name of the provider.
	Name() string
	// Set sets an option, specified as key=val.
	Set(string) error
	// ExecOption returns the exec.Option that runs ranks on the
	// system as currently configured.
	ExecOption() exec.Option
	// DefaultThreads returns the default number of threads each rank
	// uses on this provider's systems.
	DefaultThreads() int
}

// RegisterSystemProvider registers a system provider under the given
// name, which is then recalled by the -system flag.
func RegisterSystemProvider(name string, provider Provider) {
	mu.Lock()
	defer mu.Unlock()
	if _, present := providers[name]; present {
		log.Panicf("system %s is already registered", name)
	}
	providers[name] = provider
}

// RegisterSystemProfile registers a named shorthand for a system and
// its options. For example, after
//	seqflags.RegisterSystemProfile("genome-ec2", "ec2:instance=c5.4xlarge")
// the flag -system=genome-ec2 is a synonym for
// -system=ec2:instance=c5.4xlarge.
func RegisterSystemProfile(name, profile string) {
	mu.Lock()
	defer mu.Unlock()
	if _, present := providers[name]; present {
		log.Panicf("profile %s is already used as a provider name", name)
	}
	if _, present := profiles[name]; present {
		log.Panicf("profile %s is already registered", name)
	}
	profiles[name] = profile
}

// ProvidersAndProfiles returns the registered providers and profiles.
func ProvidersAndProfiles() ([]string, map[string]string) {
	mu.Lock()
	defer mu.Unlock()
	prv := make([]string, 0, len(providers))
	for k := range providers {
		prv = append(prv, k)
	}
	prf := make(map[string]string, len(profiles))
	for k, v := range profiles {
		prf[k] = v
	}
	return prv, prf
}

// Internal runs all ranks in the current process.
type Internal struct{}

// Name implements Provider.Name.
func (*Internal) Name() string { return "internal" }

// Set implements Provider.Set.
func (*Internal) Set(string) error {
	return fmt.Errorf("the internal system provider does not support any configuration")
}

// ExecOption implements Provider.ExecOption.
func (*Internal) ExecOption() exec.Option { return exec.Local }

// DefaultThreads implements Provider.DefaultThreads.
func (*Internal) DefaultThreads() int { return runtime.GOMAXPROCS(0) }

// Local runs each rank in a separate process on the local machine.
type Local struct{}

// Name implements Provider.Name.
func (*Local) Name() string { return "local" }

// Set implements Provider.Set.
func (*Local) Set(string) error {
	return fmt.Errorf("the local system provider does not support any configuration")
}

// ExecOption implements Provider.ExecOption.
func (*Local) ExecOption() exec.Option { return exec.Bigmachine(bigmachine.Local) }

// DefaultThreads implements Provider.DefaultThreads. Local ranks
// share the machine's processors.
func (*Local) DefaultThreads() int { return runtime.GOMAXPROCS(0) }

// EC2 runs each rank on its own AWS EC2 instance.
type EC2 struct {
	Options map[string]interface{}
}

// Name implements Provider.Name.
func (*EC2) Name() string { return "EC2" }

// Set implements Provider.Set.
func (ec2 *EC2) Set(v string) error {
	if ec2.Options == nil {
		ec2.Options = make(map[string]interface{}, 5)
	}
	parts := strings.Split(v, "=")
	if len(parts) != 2 {
		return fmt.Errorf("not in key=val format %q", v)
	}
	key, val := parts[0], parts[1]
	switch key {
	case "dataspace", "rootsize":
		i, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return fmt.Errorf("not an int: %v", val)
		}
		ec2.Options[key] = uint(i)
	case "instance", "profile":
		ec2.Options[key] = val
	case "ondemand":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("not a bool: %v", val)
		}
		ec2.Options[key] = b
	default:
		return fmt.Errorf("unsupported option: %v", key)
	}
	return nil
}

// DefaultThreads implements Provider.DefaultThreads. Remote ranks
// size their thread pools to the instance they run on, so the local
// processor count is only a starting point.
func (*EC2) DefaultThreads() int { return runtime.GOMAXPROCS(0) }

// ExecOption implements Provider.ExecOption.
func (ec2 *EC2) ExecOption() exec.Option {
	return exec.Bigmachine(ec2.system())
}

func (ec2 *EC2) system() *ec2system.System {
	system := &ec2system.System{Username: "unknown"}
	if u, err := user.Current(); err == nil {
		system.Username = u.Username
	} else {
		log.Printf("ec2: get current user: %v", err)
	}
	for key, val := range ec2.Options {
		switch key {
		case "instance":
			system.InstanceType = val.(string)
		case "dataspace":
			system.Dataspace = val.(uint)
		case "rootsize":
			system.Diskspace = val.(uint)
		case "profile":
			system.InstanceProfile = val.(string)
		case "ondemand":
			system.OnDemand = val.(bool)
		}
	}
	return system
}

func init() {
	RegisterSystemProvider("internal", &Internal{})
	RegisterSystemProvider("local", &Local{})
	RegisterSystemProvider("ec2", &EC2{})
}

// SystemHelpShort is a short explanation of the values accepted by
// the system flag.
func SystemHelpShort(prefix string) string {
	const format = `a bigseq system is specified as follows: {internal,local,ec2:[key=val,],name}, use -%s for more information.`
	return fmt.Sprintf(format, prefix+"system-help")
}

// SystemHelpLong is a complete explanation of the values accepted by
// the system flag.
const SystemHelpLong = `A bigseq system is specified as follows:

<system-type>:<options> where options is [key=value,]+

The currently supported system types and their options are:

internal: all ranks run in-process, the default.
local: each rank runs in a separate process on this machine.
ec2: each rank runs on an AWS EC2 instance. The supported options are:
	instance=<AWS instance type> - the AWS instance type, e.g. c5.2xlarge
	dataspace=<number> - size of the data volume in GiB
	rootsize=<number> - size of the root volume in GiB
	ondemand=<bool> - true to use on-demand rather than spot instances
	profile=<name> - the AWS instance profile to use instead of a default

An application may also register 'profiles' that are shorthand for
the above, eg. "genome-ec2" may stand for ec2:instance=c5.4xlarge.
`

// SystemFlag is a flag.Value that selects a system provider and its
// options.
type SystemFlag struct {
	Provider  Provider
	Options   []string
	Specified bool
}

// String implements flag.Value.String.
func (sys *SystemFlag) String() string {
	if sys.Provider == nil {
		return ""
	}
	if len(sys.Options) == 0 {
		return sys.Provider.Name()
	}
	return fmt.Sprintf("%v:%v", sys.Provider.Name(), strings.Join(sys.Options, ","))
}

func parseSystem(s string) (name string, options []string) {
	parts := strings.SplitN(s, ":", 2)
	name = parts[0]
	if len(parts) > 1 {
		options = strings.Split(parts[1], ",")
	}
	return
}

// Set implements flag.Value.Set.
func (sys *SystemFlag) Set(v string) error {
	name, options := parseSystem(v)
	mu.Lock()
	if profile, ok := profiles[name]; ok {
		var profileOptions []string
		name, profileOptions = parseSystem(profile)
		options = append(profileOptions, options...)
	}
	provider, ok := providers[name]
	mu.Unlock()
	if !ok {
		return fmt.Errorf("unsupported system or profile type: %v", name)
	}
	for _, opt := range options {
		if err := provider.Set(opt); err != nil {
			return err
		}
	}
	sys.Options = options
	sys.Provider = provider
	sys.Specified = true
	return nil
}

// Get implements flag.Getter.
func (sys *SystemFlag) Get() interface{} {
	return sys.String()
}

// Flags holds the flags that configure a bigseq session.
type Flags struct {
	System        SystemFlag
	SystemHelp    bool
	HTTPAddress   cmdutil.NetworkAddressFlag
	ConsoleStatus bool
	Ranks         int
	Threads       int
	Parallelism   int
	TracePath     string
	fs            *flag.FlagSet
}

// Defaults holds default values for Flags.
type Defaults struct {
	System        string
	HTTPAddress   string
	ConsoleStatus bool
	Ranks         int
	Threads       int
	Parallelism   int
}

// Output returns the writer to which help and usage messages are
// printed.
func (bf *Flags) Output() io.Writer {
	if bf.fs == nil {
		return os.Stderr
	}
	if wr := bf.fs.Output(); wr != nil {
		return wr
	}
	return os.Stderr
}

// RegisterFlags registers the bigseq flags with the supplied flag set,
// prefixing each flag name with prefix.
func RegisterFlags(fs *flag.FlagSet, bf *Flags, prefix string) {
	RegisterFlagsWithDefaults(fs, bf, prefix, Defaults{
		System:      "internal",
		HTTPAddress: ":3333",
		Ranks:       1,
	})
}

// RegisterFlagsWithDefaults registers the bigseq flags with the
// supplied flag set and defaults, prefixing each flag name with
// prefix. Zero thread and parallelism defaults select the system
// provider's defaults.
func RegisterFlagsWithDefaults(fs *flag.FlagSet, bf *Flags, prefix string, defaults Defaults) {
	fs.Var(&bf.System, prefix+"system", SystemHelpShort(prefix))
	if err := bf.System.Set(defaults.System); err != nil {
		log.Panicf("seqflags: default system %q: %v", defaults.System, err)
	}
	bf.System.Specified = false
	fs.Var(&bf.HTTPAddress, prefix+"http", "address of http status server")
	if defaults.HTTPAddress != "" {
		if err := bf.HTTPAddress.Set(defaults.HTTPAddress); err != nil {
			log.Panicf("seqflags: default http address %q: %v", defaults.HTTPAddress, err)
		}
		bf.HTTPAddress.Specified = false
	}
	fs.BoolVar(&bf.ConsoleStatus, prefix+"console-status", defaults.ConsoleStatus, "print status to stdout")
	fs.IntVar(&bf.Ranks, prefix+"ranks", defaults.Ranks, "number of ranks in the group; rank 0 coordinates")
	fs.IntVar(&bf.Threads, prefix+"threads", defaults.Threads, "number of threads used by each rank, 0 requests the system default")
	fs.IntVar(&bf.Parallelism, prefix+"parallelism", defaults.Parallelism, "thread budget shared by ranks in the same process, 0 requests the system default")
	fs.StringVar(&bf.TracePath, prefix+"trace", "", "write a trace of each run's stages to this path on shutdown")
	fs.BoolVar(&bf.SystemHelp, prefix+"system-help", false, "provide help on system providers and profiles")
	bf.fs = fs
}

// ExecOptions returns the exec.Options that configure a session as
// specified by the flags.
func (bf *Flags) ExecOptions() ([]exec.Option, error) {
	if bf.System.Provider == nil {
		return nil, fmt.Errorf("no system specified")
	}
	if bf.Ranks <= 0 {
		return nil, fmt.Errorf("invalid number of ranks %d", bf.Ranks)
	}
	if bf.Threads < 0 || bf.Parallelism < 0 {
		return nil, fmt.Errorf("invalid threads %d or parallelism %d", bf.Threads, bf.Parallelism)
	}
	var seqStatus status.Status
	// Ensure bigmachine's group is displayed first.
	_ = seqStatus.Group(exec.BigmachineStatusGroup)
	options := []exec.Option{
		exec.Status(&seqStatus),
		bf.System.Provider.ExecOption(),
		exec.Ranks(bf.Ranks),
	}
	threads := bf.Threads
	if threads == 0 {
		threads = bf.System.Provider.DefaultThreads()
	}
	options = append(options, exec.Threads(threads))
	if bf.Parallelism > 0 {
		options = append(options, exec.Parallelism(bf.Parallelism))
	}
	if bf.TracePath != "" {
		options = append(options, exec.TracePath(bf.TracePath))
	}
	return options, nil
}
