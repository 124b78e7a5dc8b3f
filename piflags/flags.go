// Package piflags provides flag support for montepi command line
// applications. The cluster that evaluates a computation is named by
// a master address of the form
//
//	<system>://<host>[:<port>][?<key>=<value>&...]
//
// where the scheme selects a system provider and the query carries
// the provider's options.
package piflags

import (
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/user"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/bigmachine/ec2system"
	"github.com/grailbio/montepi"
	"github.com/grailbio/montepi/exec"
)

var (
	mu        sync.Mutex
	providers = map[string]func() Provider{} // protected by mu
	profiles  = map[string]string{}          // protected by mu
)

// Provider represents a compute system that can be configured by
// setting some set of options via Set.
type Provider interface {
	// Name returns the name of a provider instance.
	Name() string
	// Set sets one option for the systems to be provided. The option is
	// specified as key=val.
	Set(string) error
	// ExecOption returns the exec.Option that configures a session to
	// use the system as configured by the currently set options.
	ExecOption() exec.Option

	// DefaultParallelism returns the default degree of parallelism to use
	// for this provider.
	DefaultParallelism() int
}

// RegisterSystemProvider registers a system provider under the given
// master address scheme. A new provider is made for each parsed
// master address.
func RegisterSystemProvider(scheme string, newProvider func() Provider) {
	mu.Lock()
	defer mu.Unlock()
	if _, present := providers[scheme]; present {
		log.Panicf("system %s is already registered", scheme)
	}
	providers[scheme] = newProvider
}

// RegisterMasterProfile registers a master 'profile': a named
// shorthand for a master address. For example an application that
// registers a profile of:
//   piflags.RegisterMasterProfile("big", "ec2://cluster?instance=c5.18xlarge")
// can accept
//   -master=big
// as a synonym for the full address.
func RegisterMasterProfile(name, master string) {
	mu.Lock()
	defer mu.Unlock()
	if _, present := providers[name]; present {
		log.Panicf("profile %s is already used as a provider name", name)
	}
	if _, present := profiles[name]; present {
		log.Panicf("profile %s is already registered", name)
	}
	profiles[name] = master
}

// ProvidersAndProfiles returns the supported providers and profiles.
func ProvidersAndProfiles() ([]string, map[string]string) {
	mu.Lock()
	defer mu.Unlock()
	prv := make([]string, 0, len(providers))
	for k := range providers {
		prv = append(prv, k)
	}
	sort.Strings(prv)
	prf := make(map[string]string, len(profiles))
	for k, v := range profiles {
		prf[k] = v
	}
	return prv, prf
}

// Internal represents in-process evaluation.
type Internal struct{}

// Name implements Provider.Name.
func (i *Internal) Name() string {
	return "internal"
}

// Set implements Provider.Set.
func (i *Internal) Set(_ string) error {
	return errors.E(errors.Invalid, "the internal system provider does not support any configuration")
}

// ExecOption implements Provider.ExecOption.
func (i *Internal) ExecOption() exec.Option {
	return exec.Local
}

// DefaultParallelism implements Provider.DefaultParallelism.
func (i *Internal) DefaultParallelism() int {
	return runtime.GOMAXPROCS(0)
}

// Local represents evaluation on bigmachine machines running as
// separate processes on the local machine.
type Local struct{}

// Name implements Provider.Name.
func (l *Local) Name() string {
	return "local"
}

// Set implements Provider.Set.
func (l *Local) Set(_ string) error {
	return errors.E(errors.Invalid, "the local system provider does not support any configuration")
}

// ExecOption implements Provider.ExecOption.
func (l *Local) ExecOption() exec.Option {
	return exec.Bigmachine(bigmachine.Local)
}

// DefaultParallelism implements Provider.DefaultParallelism.
func (l *Local) DefaultParallelism() int {
	return runtime.GOMAXPROCS(0)
}

// EC2 represents evaluation on AWS EC2 bigmachine instances.
type EC2 struct {
	Options map[string]interface{}
}

// Name implements Provider.Name.
func (ec2 *EC2) Name() string {
	return "EC2"
}

// Set implements Provider.Set.
func (ec2 *EC2) Set(v string) error {
	if ec2.Options == nil {
		ec2.Options = make(map[string]interface{}, 5)
	}
	parts := strings.Split(v, "=")
	if len(parts) != 2 {
		return errors.E(errors.Invalid, fmt.Sprintf("not in key=val format %q", v))
	}
	key, val := parts[0], parts[1]
	switch key {
	case "dataspace", "rootsize":
		i, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return errors.E(errors.Invalid, fmt.Sprintf("%s: not an int: %v", key, val))
		}
		ec2.Options[key] = uint(i)
	case "instance", "profile":
		ec2.Options[key] = val
	case "ondemand":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return errors.E(errors.Invalid, fmt.Sprintf("%s: not a bool: %v", key, val))
		}
		ec2.Options[key] = b
	default:
		return errors.E(errors.Invalid, fmt.Sprintf("unsupported option: %v", key))
	}
	return nil
}

// DefaultParallelism implements Provider.DefaultParallelism.
func (ec2 *EC2) DefaultParallelism() int {
	return runtime.GOMAXPROCS(0)
}

// System returns the ec2system.System configured by the provider's
// options.
func (ec2 *EC2) System() *ec2system.System {
	instance := &ec2system.System{
		Username: "unknown",
	}
	u, err := user.Current()
	if err == nil {
		instance.Username = u.Username
	} else {
		log.Printf("newec2: get current user: %v", err)
	}
	for key, val := range ec2.Options {
		switch key {
		case "instance":
			instance.InstanceType = val.(string)
		case "dataspace":
			instance.Dataspace = val.(uint)
		case "rootsize":
			instance.Diskspace = val.(uint)
		case "profile":
			instance.InstanceProfile = val.(string)
		case "ondemand":
			instance.OnDemand = val.(bool)
		}
	}
	return instance
}

// ExecOption implements Provider.ExecOption.
func (ec2 *EC2) ExecOption() exec.Option {
	return exec.Bigmachine(ec2.System())
}

func init() {
	RegisterSystemProvider("internal", func() Provider { return &Internal{} })
	RegisterSystemProvider("local", func() Provider { return &Local{} })
	RegisterSystemProvider("ec2", func() Provider { return &EC2{} })
}

// MasterHelpShort is a short explanation of the allowed MasterFlag values.
func MasterHelpShort(prefix string) string {
	const format = `the cluster master, specified as {internal,local,ec2}://host[:port][?key=val&...] or a profile name, use -%s for more information.`
	return fmt.Sprintf(format, prefix+"system-help")
}

// SystemHelpLong is a complete explanation of the allowed MasterFlag values.
const SystemHelpLong = `A cluster master is specified as follows:

<system>://<host>[:<port>][?<key>=<value>&...]

The host and port identify the cluster; the system determines how
partitions are evaluated. The currently supported systems and their
options are as follows:

internal: in-process execution, the default.
local: same machine, separate process execution.
ec2: AWS EC2 execution. The supported options are:
	instance=<AWS instance type> - the AWS instance type, e.g. m4.xlarge
	dataspace=<number> - size of the data volume in GiB, typically /mnt/data.
	rootsize=<number> - size of the root volume in GiB.
	ondemand=<bool> - true to use on-demand rather than spot instances
	profile=<name> - the aws instance profile to use instead of a default

In addition, an application may register 'profiles' that are shorthand
for the above, eg. "big" can be configured as a synonym for
ec2://cluster?instance=c5.18xlarge.
`

// MasterFlag represents a flag that names the cluster master.
type MasterFlag struct {
	Addr      string
	Provider  Provider
	Specified bool
}

// String implements flag.Value.String
func (m *MasterFlag) String() string {
	return m.Addr
}

// Set implements flag.Value.Set
func (m *MasterFlag) Set(v string) error {
	addr := v
	mu.Lock()
	if profile, ok := profiles[v]; ok {
		addr = profile
	}
	mu.Unlock()
	u, err := url.Parse(addr)
	if err != nil {
		return errors.E(errors.Invalid, fmt.Sprintf("master address %q", addr), err)
	}
	if u.Scheme == "" {
		return errors.E(errors.Invalid, fmt.Sprintf("master address %q has no system scheme", addr))
	}
	mu.Lock()
	newProvider, ok := providers[u.Scheme]
	mu.Unlock()
	if !ok {
		return errors.E(errors.Invalid, fmt.Sprintf("unsupported system or profile type: %v", u.Scheme))
	}
	provider := newProvider()
	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, val := range query[k] {
			if err := provider.Set(k + "=" + val); err != nil {
				return err
			}
		}
	}
	m.Addr = addr
	m.Provider = provider
	m.Specified = true
	return nil
}

// Get implements flag.Getter.Get
func (m *MasterFlag) Get() interface{} {
	return m.String()
}

// ExecOption returns the exec.Option that configures a session to
// evaluate on the flag's master.
func (m *MasterFlag) ExecOption() exec.Option {
	system := m.Provider.ExecOption()
	master := exec.Master(m.Addr)
	return func(s *exec.Session) {
		system(s)
		master(s)
	}
}

// ParseMaster parses a master address and returns the exec.Option
// that selects it.
func ParseMaster(addr string) (exec.Option, error) {
	var m MasterFlag
	if err := m.Set(addr); err != nil {
		return nil, err
	}
	return m.ExecOption(), nil
}

// Flags represents all of the flags that can be used to configure
// a montepi command.
type Flags struct {
	Master             MasterFlag
	SystemHelp         bool
	AppName            string
	DriverHost         string
	DriverPort         int
	ConsoleStatus      bool
	Parallelism        int
	Seed               int64
	TrialsPerPartition uint64
	Profile            string
	fs                 *flag.FlagSet
}

// Output returns an appropriate io.Writer for printing out help/usage
// messages as per the underlying flag.Flagset.
func (bf *Flags) Output() io.Writer {
	if bf.fs == nil {
		return os.Stderr
	}
	if wr := bf.fs.Output(); wr != nil {
		return wr
	}
	return os.Stderr
}

// Defaults represents default values for the supported flags.
type Defaults struct {
	Master             string
	AppName            string
	DriverHost         string
	DriverPort         int
	ConsoleStatus      bool
	Parallelism        int
	TrialsPerPartition uint64
}

// RegisterFlags registers the montepi command line flags with the supplied
// flag set. The flag names will be prefixed with the supplied prefix.
func RegisterFlags(fs *flag.FlagSet, bf *Flags, prefix string) {
	RegisterFlagsWithDefaults(fs, bf, prefix, Defaults{
		Master:             "internal://localhost",
		AppName:            exec.DefaultAppName,
		DriverHost:         exec.DefaultDriverHost,
		DriverPort:         exec.DefaultDriverPort,
		ConsoleStatus:      false,
		Parallelism:        0,
		TrialsPerPartition: montepi.DefaultTrialsPerPartition,
	})
}

// RegisterFlagsWithDefaults registers the montepi command line flags with
// the supplied flag set and defaults. The flag names will be prefixed with the
// supplied prefix.
func RegisterFlagsWithDefaults(fs *flag.FlagSet, bf *Flags, prefix string, defaults Defaults) {
	fs.Var(&bf.Master, prefix+"master", MasterHelpShort(prefix))
	if err := bf.Master.Set(defaults.Master); err != nil {
		log.Panicf("bad default master %q: %v", defaults.Master, err)
	}
	bf.Master.Specified = false
	fs.StringVar(&bf.AppName, prefix+"app", defaults.AppName, "application name of the session")
	fs.StringVar(&bf.DriverHost, prefix+"driver-host", defaults.DriverHost, "host at which the cluster reaches the driver; status is served there")
	fs.IntVar(&bf.DriverPort, prefix+"driver-port", defaults.DriverPort, "port at which the driver serves status, 0 disables the status server")
	fs.BoolVar(&bf.ConsoleStatus, prefix+"console-status", defaults.ConsoleStatus, "print status to stdout")
	fs.IntVar(&bf.Parallelism, prefix+"parallelism", defaults.Parallelism, "maximum number of partitions evaluated concurrently, 0 requests an appropriate default for the system")
	fs.Int64Var(&bf.Seed, prefix+"seed", 0, "seed for reproducible sampling; 0 samples without a seed")
	fs.Uint64Var(&bf.TrialsPerPartition, prefix+"trials", defaults.TrialsPerPartition, "number of trials per partition")
	fs.StringVar(&bf.Profile, prefix+"profile", "", "configuration profile from which to create the session, overriding the session flags")
	fs.BoolVar(&bf.SystemHelp, prefix+"system-help", false, "provide help on system providers and profiles")
	bf.fs = fs
}

// ExecOptions parses the flag values and returns a slice of exec.Options
// that represent the actions specified by those flags.
func (bf *Flags) ExecOptions() ([]exec.Option, error) {
	if bf.Master.Provider == nil {
		return nil, errors.E(errors.Invalid, "no master configured")
	}
	if bf.DriverPort < 0 || bf.DriverPort > 65535 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("invalid driver port %d", bf.DriverPort))
	}
	var sessionStatus status.Status
	// Ensure the machine group is displayed first.
	_ = sessionStatus.Group(exec.BigmachineStatusGroup)
	_ = sessionStatus.Groups()

	options := []exec.Option{
		exec.Status(&sessionStatus),
		bf.Master.ExecOption(),
		exec.AppName(bf.AppName),
		exec.Driver(bf.DriverHost, bf.DriverPort),
	}
	if bf.Parallelism > 0 {
		options = append(options, exec.Parallelism(bf.Parallelism))
	} else {
		options = append(options, exec.Parallelism(bf.Master.Provider.DefaultParallelism()))
	}
	return options, nil
}

// Request returns the request for the given number of partitions, as
// configured by the flags.
func (bf *Flags) Request(partitions int) montepi.Request {
	return montepi.Request{
		Partitions:         partitions,
		TrialsPerPartition: bf.TrialsPerPartition,
		Seed:               bf.Seed,
	}
}
