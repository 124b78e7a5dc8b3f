package piflags_test

import (
	"flag"
	"io/ioutil"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/montepi/exec"
	"github.com/grailbio/montepi/piflags"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestProvider(t *testing.T) {
	local := &piflags.Local{}
	if got, want := local.Name(), "local"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	internal := &piflags.Internal{}
	if got, want := internal.Name(), "internal"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	ec2 := &piflags.EC2{}
	if got, want := ec2.Name(), "EC2"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := ec2.Set("x=y"); err == nil {
		t.Errorf("expected an error")
	}
	if err := ec2.Set("dataspace=abc"); err == nil {
		t.Errorf("expected an error")
	}
	if err := ec2.Set("dataspace=122"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ec2.Set("instance=c5.xlarge"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ec2.Set("ondemand=true"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	system := ec2.System()
	expect.EQ(t, system.InstanceType, "c5.xlarge")
	expect.EQ(t, system.Dataspace, uint(122))
	expect.EQ(t, system.OnDemand, true)
}

func TestMasterFlag(t *testing.T) {
	var m piflags.MasterFlag
	assert.NoError(t, m.Set("local://localhost"))
	expect.EQ(t, m.Provider.Name(), "local")
	expect.EQ(t, m.String(), "local://localhost")
	if err := m.Set("local://localhost?an=option"); err == nil {
		t.Errorf("expected an error")
	}
	assert.NoError(t, m.Set("internal://cluster:7077"))
	expect.EQ(t, m.Provider.Name(), "internal")
	if err := m.Set("internal://cluster:7077?an=option"); err == nil {
		t.Errorf("expected an error")
	}
	assert.NoError(t, m.Set("ec2://cluster?dataspace=200&rootsize=10"))
	ec2 := m.Provider.(*piflags.EC2)
	expect.EQ(t, ec2.Options["dataspace"], uint(200))
	expect.EQ(t, ec2.Options["rootsize"], uint(10))
	if err := m.Set("ec2://cluster?an=option"); err == nil {
		t.Errorf("expected an error")
	}
	for _, bad := range []string{"cluster:7077", "spark://master:7077", "://x"} {
		if err := m.Set(bad); !errors.Is(errors.Invalid, err) {
			t.Errorf("%s: expected invalid error, got %v", bad, err)
		}
	}
}

func TestMasterProfile(t *testing.T) {
	piflags.RegisterMasterProfile("test-inproc", "internal://test:1")
	var m piflags.MasterFlag
	assert.NoError(t, m.Set("test-inproc"))
	expect.EQ(t, m.Provider.Name(), "internal")
	expect.EQ(t, m.Addr, "internal://test:1")
	providers, profiles := piflags.ProvidersAndProfiles()
	expect.EQ(t, providers, []string{"ec2", "internal", "local"})
	expect.EQ(t, profiles["test-inproc"], "internal://test:1")
}

func TestParseMaster(t *testing.T) {
	opt, err := piflags.ParseMaster("internal://cluster:7077")
	assert.NoError(t, err)
	sess, err := exec.Start(opt)
	assert.NoError(t, err)
	defer sess.Shutdown()
	expect.EQ(t, sess.Master(), "internal://cluster:7077")
	expect.EQ(t, sess.Executor().Name(), "internal")

	if _, err := piflags.ParseMaster("nope://x"); err == nil {
		t.Error("expected an error")
	}
}

func TestFlags(t *testing.T) {
	var (
		fs = flag.NewFlagSet("test", flag.ContinueOnError)
		bf piflags.Flags
	)
	fs.SetOutput(ioutil.Discard)
	piflags.RegisterFlags(fs, &bf, "")
	expect.EQ(t, bf.Master.Addr, "internal://localhost")
	expect.EQ(t, bf.Master.Specified, false)

	err := fs.Parse([]string{
		"-master", "internal://pi:7077",
		"-app", "SparkPi",
		"-driver-host", "driver",
		"-driver-port", "4041",
		"-parallelism", "3",
		"-seed", "5",
		"-trials", "10",
		"7",
	})
	assert.NoError(t, err)
	expect.EQ(t, bf.Master.Specified, true)
	expect.EQ(t, fs.Args(), []string{"7"})

	req := bf.Request(7)
	expect.EQ(t, req.Partitions, 7)
	expect.EQ(t, req.TrialsPerPartition, uint64(10))
	expect.EQ(t, req.Seed, int64(5))

	options, err := bf.ExecOptions()
	assert.NoError(t, err)
	sess, err := exec.Start(options...)
	assert.NoError(t, err)
	defer sess.Shutdown()
	expect.EQ(t, sess.AppName(), "SparkPi")
	expect.EQ(t, sess.Master(), "internal://pi:7077")
	expect.EQ(t, sess.DriverAddr(), "driver:4041")
	expect.EQ(t, sess.Parallelism(), 3)
	if sess.Status() == nil {
		t.Error("expected session status")
	}
}

func TestFlagsBadMaster(t *testing.T) {
	var (
		fs = flag.NewFlagSet("test", flag.ContinueOnError)
		bf piflags.Flags
	)
	fs.SetOutput(ioutil.Discard)
	piflags.RegisterFlags(fs, &bf, "pi-")
	if err := fs.Parse([]string{"-pi-master", "mesos://x:5050"}); err == nil {
		t.Error("expected an error")
	}
	if err := fs.Parse([]string{"-pi-driver-port", "70000"}); err != nil {
		t.Fatal(err)
	}
	if _, err := bf.ExecOptions(); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid error, got %v", err)
	}
}
