// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"reflect"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/grailbio/base/config"
	"github.com/grailbio/base/errors"
)

// fakeEC2 implements the parts of the EC2 API used by setup-ec2.
type fakeEC2 struct {
	ec2iface.EC2API

	groups  map[string]string
	vpcs    []*ec2.Vpc
	ingress []*ec2.IpPermission
	tags    []*ec2.Tag
}

func (f *fakeEC2) DescribeSecurityGroups(in *ec2.DescribeSecurityGroupsInput) (*ec2.DescribeSecurityGroupsOutput, error) {
	out := new(ec2.DescribeSecurityGroupsOutput)
	name := aws.StringValue(in.Filters[0].Values[0])
	if id, ok := f.groups[name]; ok {
		out.SecurityGroups = []*ec2.SecurityGroup{{GroupName: aws.String(name), GroupId: aws.String(id)}}
	}
	return out, nil
}

func (f *fakeEC2) DescribeVpcs(*ec2.DescribeVpcsInput) (*ec2.DescribeVpcsOutput, error) {
	return &ec2.DescribeVpcsOutput{Vpcs: f.vpcs}, nil
}

func (f *fakeEC2) CreateSecurityGroup(in *ec2.CreateSecurityGroupInput) (*ec2.CreateSecurityGroupOutput, error) {
	id := "sg-" + aws.StringValue(in.GroupName)
	f.groups[aws.StringValue(in.GroupName)] = id
	return &ec2.CreateSecurityGroupOutput{GroupId: aws.String(id)}, nil
}

func (f *fakeEC2) AuthorizeSecurityGroupIngress(in *ec2.AuthorizeSecurityGroupIngressInput) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	f.ingress = append(f.ingress, in.IpPermissions...)
	return new(ec2.AuthorizeSecurityGroupIngressOutput), nil
}

func (f *fakeEC2) CreateTags(in *ec2.CreateTagsInput) (*ec2.CreateTagsOutput, error) {
	f.tags = append(f.tags, in.Tags...)
	return new(ec2.CreateTagsOutput), nil
}

func newFakeEC2() *fakeEC2 {
	return &fakeEC2{
		groups: make(map[string]string),
		vpcs:   []*ec2.Vpc{{VpcId: aws.String("vpc-1"), CidrBlock: aws.String("172.31.0.0/16")}},
	}
}

func TestSetupSecurityGroup(t *testing.T) {
	svc := newFakeEC2()
	id, err := setupSecurityGroup(svc, "bigseq", groupRules{Ingress: "10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := id, "sg-bigseq"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	type rule struct {
		proto, cidr string
		port        int64
	}
	var rules []rule
	for _, p := range svc.ingress {
		rules = append(rules, rule{aws.StringValue(p.IpProtocol), aws.StringValue(p.IpRanges[0].CidrIp), aws.Int64Value(p.FromPort)})
	}
	want := []rule{{"-1", "172.31.0.0/16", 0}, {"tcp", "10.0.0.0/8", 443}}
	if got := rules; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := len(svc.tags), 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	// An existing group is reused as is.
	svc.ingress = nil
	id, err = setupSecurityGroup(svc, "bigseq", groupRules{Ingress: "0.0.0.0/0", SSH: true})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := id, "sg-bigseq"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if len(svc.ingress) != 0 {
		t.Errorf("unexpected ingress rules %v", svc.ingress)
	}
}

func TestSetupSecurityGroupVPC(t *testing.T) {
	svc := newFakeEC2()
	svc.vpcs = nil
	if _, err := setupSecurityGroup(svc, "bigseq", groupRules{}); !errors.Is(errors.NotExist, err) {
		t.Errorf("got %v, want not exist", err)
	}
	svc.vpcs = []*ec2.Vpc{{VpcId: aws.String("vpc-1")}, {VpcId: aws.String("vpc-2")}}
	if _, err := setupSecurityGroup(svc, "bigseq", groupRules{}); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want invalid", err)
	}
	if got, want := len(svc.groups), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestGroupRulesSSH(t *testing.T) {
	perms := groupRules{Ingress: "192.168.0.0/16", SSH: true}.Permissions("172.31.0.0/16")
	if got, want := len(perms), 3; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	ssh := perms[2]
	if got, want := aws.Int64Value(ssh.FromPort), int64(22); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := aws.StringValue(ssh.IpRanges[0].CidrIp), "192.168.0.0/16"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestInstanceFor(t *testing.T) {
	for _, c := range []struct {
		threads int
		want    string
	}{
		{1, "c5.large"},
		{2, "c5.large"},
		{3, "c5.xlarge"},
		{8, "c5.2xlarge"},
		{17, "c5.9xlarge"},
		{96, "c5.24xlarge"},
	} {
		got, err := instanceFor(c.threads)
		if err != nil {
			t.Fatal(err)
		}
		if got != c.want {
			t.Errorf("threads=%d: got %v, want %v", c.threads, got, c.want)
		}
	}
	if _, err := instanceFor(97); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want invalid", err)
	}
}

func TestConfigureProfile(t *testing.T) {
	profile := config.New()
	if err := configureProfile(profile, topology{Ranks: 6, Threads: 4, Instance: "c5.xlarge"}); err != nil {
		t.Fatal(err)
	}
	for key, want := range map[string]string{
		"bigseq.ranks":                  "6",
		"bigseq.threads":                "4",
		"bigmachine/ec2system.instance": "c5.xlarge",
	} {
		got, ok := profile.Get(key)
		if !ok {
			t.Errorf("%s: not set", key)
			continue
		}
		if got = strings.Trim(got, `"`); got != want {
			t.Errorf("%s: got %v, want %v", key, got, want)
		}
	}
	if err := configureProfile(profile, topology{Ranks: 0, Threads: 4}); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want invalid", err)
	}
}
