// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/grailbio/base/config"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"

	// Registered so that the written profile shows their defaults.
	_ "github.com/grailbio/base/config/aws"
	_ "github.com/grailbio/bigmachine/ec2system"
	_ "github.com/grailbio/bigseq/exec"
	"github.com/grailbio/bigseq/seqconfig"
)

func setupEc2Usage(flags *flag.FlagSet) {
	fmt.Fprint(os.Stderr, `usage: bigseq setup-ec2 [flags]

Command setup-ec2 prepares an AWS account to run bigseq groups on EC2
and writes a profile for them to `, seqconfig.Path, `. The profile is
used by the operation commands when given the -profile flag; an
existing profile is modified in place.

Each rank of a group runs on its own EC2 instance. The instance type
is the smallest compute-optimized type with at least -threads vCPUs,
unless -instance names one.

Ranks exchange sequences and results with each other over bigmachine's
HTTPS transport, and the command driving a group dials each rank the
same way. The security group named by -securitygroup is created, if
it does not already exist, with these rules:

	allowed: all traffic between instances of the default VPC
	allowed: inbound HTTPS from -ingress
	allowed: inbound SSH from -ingress, if -ssh is set
	allowed: all outbound

The flags are:
`)
	flags.PrintDefaults()
	os.Exit(2)
}

// A topology describes the EC2 group configured by setup-ec2.
type topology struct {
	Ranks, Threads int
	// Instance is the EC2 instance type of every rank.
	Instance string
}

// c5Types lists compute-optimized instance types by vCPU count.
var c5Types = []struct {
	vcpus int
	name  string
}{
	{2, "c5.large"},
	{4, "c5.xlarge"},
	{8, "c5.2xlarge"},
	{16, "c5.4xlarge"},
	{36, "c5.9xlarge"},
	{48, "c5.12xlarge"},
	{72, "c5.18xlarge"},
	{96, "c5.24xlarge"},
}

// instanceFor returns the smallest c5 instance type with at least the
// given number of vCPUs.
func instanceFor(threads int) (string, error) {
	for _, t := range c5Types {
		if t.vcpus >= threads {
			return t.name, nil
		}
	}
	return "", errors.E(errors.Invalid, fmt.Sprintf("no instance type has %d vCPUs", threads))
}

func setupEc2Cmd(args []string) {
	var (
		flags         = flag.NewFlagSet("bigseq setup-ec2", flag.ExitOnError)
		securityGroup = flags.String("securitygroup", "bigseq", "name of the security group to set up")
		ranks         = flags.Int("ranks", 4, "number of ranks in the group")
		threads       = flags.Int("threads", 8, "number of threads used by each rank")
		instance      = flags.String("instance", "", "EC2 instance type of each rank; derived from -threads if empty")
		ingress       = flags.String("ingress", "0.0.0.0/0", "CIDR block from which the group may be driven")
		ssh           = flags.Bool("ssh", false, "allow inbound SSH connections from -ingress")
	)
	flags.Usage = func() { setupEc2Usage(flags) }
	must.Nil(flags.Parse(args))
	if flags.NArg() != 0 {
		flags.Usage()
	}

	topo := topology{Ranks: *ranks, Threads: *threads, Instance: *instance}
	if topo.Instance == "" {
		var err error
		topo.Instance, err = instanceFor(topo.Threads)
		must.Nil(err)
	}
	profile, err := seqconfig.Profile(seqconfig.Path)
	must.Nil(err)

	if v, ok := profile.Get("bigmachine/ec2system.security-group"); ok && v != `""` {
		log.Printf("security group %s already configured", v)
	} else {
		sess, err := session.NewSession()
		must.Nil(err, "setting up AWS session")
		rules := groupRules{Ingress: *ingress, SSH: *ssh}
		id, err := setupSecurityGroup(ec2.New(sess), *securityGroup, rules)
		must.Nil(err, "setting up security group")
		must.Nil(profile.Set("bigmachine/ec2system.security-group", id))
	}
	must.Nil(configureProfile(profile, topo))

	var buf bytes.Buffer
	must.Nil(profile.PrintTo(&buf))
	must.Nil(os.MkdirAll(filepath.Dir(seqconfig.Path), 0777))
	must.Nil(ioutil.WriteFile(seqconfig.Path+".setup-ec2", buf.Bytes(), 0666))
	must.Nil(os.Rename(seqconfig.Path+".setup-ec2", seqconfig.Path))
	log.Printf("wrote profile for %d ranks of %s to %s", topo.Ranks, topo.Instance, seqconfig.Path)
}

// configureProfile sets the parameters of profile that run bigseq
// sessions on EC2 with the given topology.
func configureProfile(profile *config.Profile, topo topology) error {
	if topo.Ranks <= 0 || topo.Threads <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("invalid topology: %d ranks of %d threads", topo.Ranks, topo.Threads))
	}
	params := [][2]string{
		{"bigseq.system", "bigmachine/ec2system"},
		{"bigseq.ranks", fmt.Sprint(topo.Ranks)},
		{"bigseq.threads", fmt.Sprint(topo.Threads)},
		{"bigmachine/ec2system.instance", topo.Instance},
	}
	if region, ok := profile.Get("aws/env.region"); ok && len(region) > 0 {
		params = append(params, [2]string{"bigmachine/ec2system.default-region", strings.Trim(region, `"`)})
	}
	for _, p := range params {
		if err := profile.Set(p[0], p[1]); err != nil {
			return errors.E(errors.Invalid, p[0], err)
		}
	}
	return nil
}

// groupRules determines the ingress rules of the bigseq security
// group.
type groupRules struct {
	// Ingress is the CIDR block from which HTTPS and SSH are allowed.
	Ingress string
	// SSH allows inbound SSH connections.
	SSH bool
}

// Permissions returns the ingress permissions for a security group in
// the VPC with the given CIDR block.
func (r groupRules) Permissions(vpcCIDR string) []*ec2.IpPermission {
	perm := func(proto, cidr string, port int64) *ec2.IpPermission {
		return &ec2.IpPermission{
			IpProtocol: aws.String(proto),
			IpRanges:   []*ec2.IpRange{{CidrIp: aws.String(cidr)}},
			FromPort:   aws.Int64(port),
			ToPort:     aws.Int64(port),
		}
	}
	perms := []*ec2.IpPermission{
		perm("-1", vpcCIDR, 0),
		perm("tcp", r.Ingress, 443),
	}
	if r.SSH {
		perms = append(perms, perm("tcp", r.Ingress, 22))
	}
	return perms
}

// setupSecurityGroup returns the ID of the security group with the
// provided name, creating it in the account's default VPC if it does
// not exist.
func setupSecurityGroup(svc ec2iface.EC2API, name string, rules groupRules) (string, error) {
	groups, err := svc.DescribeSecurityGroups(&ec2.DescribeSecurityGroupsInput{
		Filters: []*ec2.Filter{{
			Name:   aws.String("group-name"),
			Values: []*string{aws.String(name)},
		}},
	})
	if err != nil {
		return "", errors.E(errors.Net, fmt.Sprintf("describe security group %s", name), err)
	}
	if len(groups.SecurityGroups) > 0 {
		id := aws.StringValue(groups.SecurityGroups[0].GroupId)
		log.Printf("using existing security group %s (%s)", name, id)
		return id, nil
	}
	vpcs, err := svc.DescribeVpcs(&ec2.DescribeVpcsInput{
		Filters: []*ec2.Filter{{
			Name:   aws.String("isDefault"),
			Values: []*string{aws.String("true")},
		}},
	})
	if err != nil {
		return "", errors.E(errors.Net, "describe default VPC", err)
	}
	switch len(vpcs.Vpcs) {
	case 0:
		return "", errors.E(errors.NotExist,
			"the account has no default VPC; see https://docs.aws.amazon.com/vpc/latest/userguide/default-vpc.html#create-default-vpc")
	case 1:
	default:
		return "", errors.E(errors.Invalid, fmt.Sprintf("the account has %d default VPCs", len(vpcs.Vpcs)))
	}
	vpc := vpcs.Vpcs[0]
	created, err := svc.CreateSecurityGroup(&ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String("bigseq ranks; created by bigseq setup-ec2"),
		VpcId:       vpc.VpcId,
	})
	if err != nil {
		return "", errors.E(fmt.Sprintf("create security group %s in %s", name, aws.StringValue(vpc.VpcId)), err)
	}
	id := aws.StringValue(created.GroupId)
	if _, err := svc.AuthorizeSecurityGroupIngress(&ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       created.GroupId,
		IpPermissions: rules.Permissions(aws.StringValue(vpc.CidrBlock)),
	}); err != nil {
		return "", errors.E(fmt.Sprintf("authorize ingress for security group %s", id), err)
	}
	if _, err := svc.CreateTags(&ec2.CreateTagsInput{
		Resources: []*string{created.GroupId},
		Tags: []*ec2.Tag{
			{Key: aws.String("Name"), Value: aws.String(name)},
			{Key: aws.String("bigseq"), Value: aws.String("true")},
		},
	}); err != nil {
		log.Error.Printf("tag security group %s: %v", id, err)
	}
	log.Printf("created security group %s (%s) in %s", name, id, aws.StringValue(vpc.VpcId))
	return id, nil
}
