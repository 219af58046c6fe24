// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package seqcmd provides utilities for implementing bigseq command
// line tools. The main entry point, seqcmd.Main, configures a bigseq
// session according to a common set of flags, and then invokes the
// user's driver code.
//
// A seqcmd tool follows this form:
//
//	func main() {
//		seqcmd.Main(func(sess *exec.Session, args []string) error {
//			ctx := context.Background()
//			res, err := sess.Run(ctx, bigseq.CountBases(), seqio.File(args[0]))
//			if err != nil {
//				return err
//			}
//			fmt.Println(res.Counts)
//			return nil
//		})
//	}
package seqcmd

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Exposed on the diagnostic web server.
	"os"
	"sort"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigseq/exec"
	"github.com/grailbio/bigseq/seqflags"
)

// Main is a convenient entry point for a seqcmd. Main parses the
// (global) flags, starts a session accordingly, and invokes the
// provided func with it and the unparsed arguments. Main does not
// return: the session is shut down after the func returns, and the
// process exits with code 1 if it returned an error, 0 otherwise.
//
// Main starts a diagnostic web server (default address :3333) on
// http.DefaultServeMux, which includes pprof handlers as well as the
// session's debug handlers.
func Main(main func(sess *exec.Session, args []string) error) {
	var fl seqflags.Flags
	seqflags.RegisterFlags(flag.CommandLine, &fl, "")
	log.AddFlags()
	flag.Parse()
	if err := Run(fl, func(sess *exec.Session) error {
		return main(sess, flag.Args())
	}); err != nil {
		log.Fatal(err)
	}
	os.Exit(0)
}

// Run starts a session as configured by the supplied flags and invokes
// main with it. The session is shut down when main returns, and Run
// returns main's error.
func Run(bf seqflags.Flags, main func(sess *exec.Session) error) error {
	sess, err := Init(bf)
	if err != nil {
		return err
	}
	defer sess.Shutdown()
	return main(sess)
}

// Init starts a bigseq session according to the supplied flags.
func Init(bf seqflags.Flags) (*exec.Session, error) {
	if bf.SystemHelp {
		PrintSystemHelp(bf)
		os.Exit(0)
	}
	options, err := bf.ExecOptions()
	if err != nil {
		return nil, err
	}
	sess := exec.Start(options...)
	DisplayStatus(bf, sess)
	return sess, nil
}

// PrintSystemHelp prints the help for the system flag along with the
// registered providers and profiles.
func PrintSystemHelp(bf seqflags.Flags) {
	providers, profiles := seqflags.ProvidersAndProfiles()
	sort.Strings(providers)
	wr := bf.Output()
	fmt.Fprintf(wr, "%s\n\n", seqflags.SystemHelpLong)
	fmt.Fprintf(wr, "The available providers are: %v\n", strings.Join(providers, ", "))
	var str []string
	for k, v := range profiles {
		str = append(str, fmt.Sprintf("%v is shorthand for: %v\n", k, v))
	}
	sort.Strings(str)
	for _, s := range str {
		fmt.Fprint(wr, s)
	}
}

// DisplayStatus arranges for the session's status to be displayed on
// the console and/or a web page, as specified by the flags. The web
// page is served at /debug/status on http.DefaultServeMux.
func DisplayStatus(bf seqflags.Flags, sess *exec.Session) {
	if bf.ConsoleStatus && sess.Status() != nil {
		var console status.Reporter
		go console.Go(os.Stdout, sess.Status())
	}
	if len(bf.HTTPAddress.Address) > 0 {
		sess.HandleDebug(http.DefaultServeMux)
		if sess.Status() != nil {
			http.Handle("/debug/status", status.Handler(sess.Status()))
		}
		go func() {
			log.Printf("HTTP Status at: %v", bf.HTTPAddress)
			if err := http.ListenAndServe(bf.HTTPAddress.Address, nil); err != nil {
				log.Error.Printf("failed to start HTTP at %v: %v", bf.HTTPAddress, err)
			}
		}()
	}
}
