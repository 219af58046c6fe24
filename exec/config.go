// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"fmt"
	"runtime"

	"github.com/grailbio/base/config"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/bigmachine"
)

func init() {
	config.Register("bigseq", func(inst *config.Constructor) {
		sess := newSession()
		inst.IntVar(&sess.ranks, "ranks", 1, "number of ranks in the group; rank 0 is the coordinator")
		inst.IntVar(&sess.threads, "threads", runtime.GOMAXPROCS(0), "number of threads used by each rank")
		inst.IntVar(&sess.p, "parallelism", runtime.GOMAXPROCS(0), "thread budget shared by in-process ranks")
		var system bigmachine.System
		inst.InstanceVar(&system, "system", "", "the bigmachine system on which ranks are run")
		inst.Doc = "bigseq configures the bigseq runtime"
		inst.New = func() (interface{}, error) {
			if sess.ranks <= 0 || sess.threads <= 0 || sess.p <= 0 {
				return nil, errors.E(errors.Invalid,
					fmt.Sprintf("bigseq: ranks %d, threads %d, parallelism %d must be positive", sess.ranks, sess.threads, sess.p))
			}
			if system != nil {
				sess.executor = newBigmachineExecutor(system)
			} else {
				sess.executor = newLocalExecutor()
			}
			sess.start()
			return sess, nil
		}
	})
}
