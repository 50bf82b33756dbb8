package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

type countingRescanner struct {
	calls atomic.Int32
}

func (c *countingRescanner) StartScan(context.Context) <-chan struct{} {
	c.calls.Add(1)
	done := make(chan struct{})
	close(done)
	return done
}

var _ = ginkgo.Describe("Watcher", func() {
	var (
		dir    string
		target *countingRescanner
		w      *Watcher
		cancel context.CancelFunc
	)

	ginkgo.BeforeEach(func() {
		var err error
		dir, err = filepath.EvalSymlinks(ginkgo.GinkgoT().TempDir())
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(os.MkdirAll(filepath.Join(dir, "sub", "deep"), 0755)).To(gomega.Succeed())

		target = &countingRescanner{}
		w, err = NewWatcher(target, []Root{{Dir: dir, MaxDepth: 2}}, 50*time.Millisecond)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		go w.Run(ctx)
	})

	ginkgo.AfterEach(func() {
		cancel()
	})

	ginkgo.It("watches the root down to its scan depth", func() {
		gomega.Expect(w.Watched()).To(gomega.ConsistOf(dir, filepath.Join(dir, "sub")))
	})

	ginkgo.It("rescans once after a burst of changes", func() {
		for _, name := range []string{"a.desktop", "b.desktop", "c.desktop"} {
			gomega.Expect(os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644)).To(gomega.Succeed())
		}
		gomega.Eventually(target.calls.Load).Should(gomega.BeEquivalentTo(1))
		gomega.Consistently(target.calls.Load, 200*time.Millisecond).Should(gomega.BeEquivalentTo(1))
	})

	ginkgo.It("ignores hidden files", func() {
		gomega.Expect(os.WriteFile(filepath.Join(dir, ".swap"), []byte("x"), 0644)).To(gomega.Succeed())
		gomega.Consistently(target.calls.Load, 200*time.Millisecond).Should(gomega.BeZero())
	})
})
