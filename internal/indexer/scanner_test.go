package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/0xADE/ade-launchd/internal/indexer/desktop"
)

type fakeIcons struct {
	mu    sync.Mutex
	hints map[string]string
}

func (f *fakeIcons) Lookup(displayName, target, hint string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hints == nil {
		f.hints = make(map[string]string)
	}
	f.hints[displayName] = hint
	if strings.HasPrefix(displayName, "No") {
		return "", false
	}
	return "/icons/" + displayName + ".png", true
}

func displayNames(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.DisplayName
	}
	return out
}

var _ = ginkgo.Describe("Scanner", func() {
	var (
		base    string
		apps    string
		opt     string
		roots   []Root
		ctx     context.Context
		entries []Entry
		err     error
	)

	writeFile := func(path, content string, mode os.FileMode) {
		gomega.Expect(os.MkdirAll(filepath.Dir(path), 0755)).To(gomega.Succeed())
		gomega.Expect(os.WriteFile(path, []byte(content), mode)).To(gomega.Succeed())
		gomega.Expect(os.Chmod(path, mode)).To(gomega.Succeed())
	}
	shortcut := func(name, body string) string {
		path := filepath.Join(apps, name)
		writeFile(path, "[Desktop Entry]\nType=Application\n"+body, 0644)
		return path
	}
	binary := func(rel string) string {
		path := filepath.Join(opt, rel)
		writeFile(path, "#!/bin/sh\n", 0755)
		return path
	}

	ginkgo.BeforeEach(func() {
		var e error
		base, e = filepath.EvalSymlinks(ginkgo.GinkgoT().TempDir())
		gomega.Expect(e).NotTo(gomega.HaveOccurred())
		apps = filepath.Join(base, "applications")
		opt = filepath.Join(base, "opt")
		gomega.Expect(os.MkdirAll(apps, 0755)).To(gomega.Succeed())
		gomega.Expect(os.MkdirAll(opt, 0755)).To(gomega.Succeed())

		roots = []Root{
			{Dir: apps, Source: SourcePrimary, MaxDepth: 5, Extensions: []string{"desktop"}},
			{Dir: opt, Source: SourceSecondary, MaxDepth: 2, Extensions: []string{"", "appimage"}, RequireExec: true},
		}
		ctx = context.Background()
	})

	scan := func(icons IconSource) {
		entries, err = NewScanner(roots, icons, 2, "").Scan(ctx)
	}

	ginkgo.Context("with shortcuts and executables", func() {
		ginkgo.BeforeEach(func() {
			shortcut("zed.desktop", "Name=Zed\nTryExec=/opt/zed/zed\nIcon=zed\n")
			shortcut("alpha.desktop", "Name=Alpha\nExec=alpha-not-installed-xyz\n")
			binary("beta/beta")
			binary("Apple.AppImage")
			scan(nil)
		})

		ginkgo.It("should succeed", func() {
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("orders by source, then display name byte-wise", func() {
			gomega.Expect(displayNames(entries)).To(gomega.Equal([]string{"Alpha", "Zed", "Apple", "beta"}))
		})

		ginkgo.It("fills in the entry fields", func() {
			zed := entries[1]
			gomega.Expect(zed.Path).To(gomega.Equal(filepath.Join(apps, "zed.desktop")))
			gomega.Expect(zed.Name).To(gomega.Equal("zed"))
			gomega.Expect(zed.Source).To(gomega.Equal(SourcePrimary))
			gomega.Expect(zed.Target).To(gomega.Equal("/opt/zed/zed"))

			apple := entries[2]
			gomega.Expect(apple.Name).To(gomega.Equal("apple"))
			gomega.Expect(apple.Source).To(gomega.Equal(SourceSecondary))
			gomega.Expect(apple.Target).To(gomega.Equal(apple.Path))
			gomega.Expect(apple.HasIcon()).To(gomega.BeFalse())
		})

		ginkgo.It("leaves the target empty for an uninstalled program", func() {
			gomega.Expect(entries[0].Target).To(gomega.BeEmpty())
		})
	})

	ginkgo.It("keeps the first entry for a display name, ignoring case", func() {
		shortcut("firefox.desktop", "Name=Firefox\nExec=firefox\n")
		binary("firefox/firefox")
		binary("FIREFOX")
		scan(nil)
		gomega.Expect(entries).To(gomega.HaveLen(1))
		gomega.Expect(entries[0].Source).To(gomega.Equal(SourcePrimary))
	})

	ginkgo.It("drops uninstallers, updaters and installers", func() {
		binary("tool/uninstall-tool")
		binary("tool/Updater")
		binary("Setup.AppImage")
		binary("tool/tool")
		shortcut("uninst-app.desktop", "Name=Remove App\nExec=true\n")
		scan(nil)
		gomega.Expect(displayNames(entries)).To(gomega.Equal([]string{"tool"}))
	})

	ginkgo.It("filters by extension and execute bit", func() {
		binary("run.sh")
		writeFile(filepath.Join(opt, "notes"), "text", 0644)
		writeFile(filepath.Join(apps, "readme.txt"), "text", 0644)
		binary("App.AppImage")
		scan(nil)
		gomega.Expect(displayNames(entries)).To(gomega.Equal([]string{"App"}))
	})

	ginkgo.It("skips hidden files", func() {
		binary(".secret")
		shortcut(".hidden.desktop", "Name=Hidden\nExec=true\n")
		scan(nil)
		gomega.Expect(entries).To(gomega.BeEmpty())
	})

	ginkgo.It("honours the root depth", func() {
		binary("top")
		binary("one/two")
		binary("one/deeper/three")
		shortcut("a/b/c/d/nested.desktop", "Name=Nested\nExec=true\n")
		shortcut("a/b/c/d/e/toodeep.desktop", "Name=Too Deep\nExec=true\n")
		scan(nil)
		gomega.Expect(displayNames(entries)).To(gomega.Equal([]string{"Nested", "top", "two"}))
	})

	ginkgo.It("does not follow symlinks", func() {
		target := binary("real/real")
		gomega.Expect(os.Symlink(target, filepath.Join(opt, "link"))).To(gomega.Succeed())
		gomega.Expect(os.Symlink(filepath.Join(opt, "real"), filepath.Join(opt, "linkdir"))).To(gomega.Succeed())
		scan(nil)
		gomega.Expect(displayNames(entries)).To(gomega.Equal([]string{"real"}))
	})

	ginkgo.It("skips shortcuts that ask not to be shown", func() {
		shortcut("shown.desktop", "Name=Shown\nExec=true\n")
		shortcut("nodisplay.desktop", "Name=Invisible\nExec=true\nNoDisplay=true\n")
		shortcut("deleted.desktop", "Name=Deleted\nExec=true\nHidden=true\n")
		scan(nil)
		gomega.Expect(displayNames(entries)).To(gomega.Equal([]string{"Shown"}))
	})

	ginkgo.It("indexes a malformed shortcut under its file name", func() {
		path := filepath.Join(apps, "Broken-App.desktop")
		writeFile(path, "this is not a desktop entry\n", 0644)
		scan(nil)
		gomega.Expect(entries).To(gomega.HaveLen(1))
		gomega.Expect(entries[0].DisplayName).To(gomega.Equal("Broken-App"))
		gomega.Expect(entries[0].Name).To(gomega.Equal("broken-app"))
		gomega.Expect(entries[0].Target).To(gomega.Equal(path))
	})

	ginkgo.It("hands out a copy of its roots", func() {
		s := NewScanner(roots, nil, 1, "")
		got := s.Roots()
		gomega.Expect(got).To(gomega.Equal(roots))
		got[0].Dir = "/elsewhere"
		gomega.Expect(s.Roots()).To(gomega.Equal(roots))
	})

	ginkgo.It("survives a panicking shortcut parser", func() {
		path := shortcut("crash.desktop", "Name=Crash\nExec=true\n")
		s := NewScanner(roots, nil, 1, "")
		s.resolve = func(string, string) (desktop.Shortcut, error) {
			panic("bad shortcut")
		}
		entries, err = s.Scan(ctx)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(entries).To(gomega.HaveLen(1))
		gomega.Expect(entries[0].DisplayName).To(gomega.Equal("crash"))
		gomega.Expect(entries[0].Target).To(gomega.Equal(path))
	})

	ginkgo.It("prefers the configured language", func() {
		shortcut("files.desktop", "Name=Files\nName[fr]=Fichiers\nExec=true\n")
		entries, err = NewScanner(roots, nil, 1, "fr_FR.UTF-8").Scan(ctx)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(displayNames(entries)).To(gomega.Equal([]string{"Fichiers"}))
		gomega.Expect(entries[0].Name).To(gomega.Equal("files"))
	})

	ginkgo.It("attaches icons where available", func() {
		shortcut("editor.desktop", "Name=Editor\nExec=true\nIcon=accessories-text-editor\n")
		shortcut("noicon.desktop", "Name=NoIcon\nExec=true\n")
		binary("shell")
		icons := &fakeIcons{}
		scan(icons)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(displayNames(entries)).To(gomega.Equal([]string{"Editor", "NoIcon", "shell"}))
		gomega.Expect(entries[0].IconPath).To(gomega.Equal("/icons/Editor.png"))
		gomega.Expect(entries[1].HasIcon()).To(gomega.BeFalse())
		gomega.Expect(entries[2].IconPath).To(gomega.Equal("/icons/shell.png"))
		gomega.Expect(icons.hints).To(gomega.HaveKeyWithValue("Editor", "accessories-text-editor"))
	})

	ginkgo.It("ignores missing roots", func() {
		roots = append(roots, Root{Dir: filepath.Join(base, "missing"), Source: SourceSecondary, MaxDepth: 1})
		binary("tool")
		scan(nil)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(displayNames(entries)).To(gomega.Equal([]string{"tool"}))
	})

	ginkgo.It("returns nothing when cancelled", func() {
		binary("tool")
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		entries, err = NewScanner(roots, nil, 1, "").Scan(cctx)
		gomega.Expect(err).To(gomega.MatchError(context.Canceled))
		gomega.Expect(entries).To(gomega.BeNil())
	})
})

var _ = ginkgo.Describe("SortEntries", func() {
	ginkgo.It("puts primary entries first and keeps equal keys stable", func() {
		entries := []Entry{
			{DisplayName: "b", Source: SourceSecondary, Path: "1"},
			{DisplayName: "B", Source: SourcePrimary, Path: "2"},
			{DisplayName: "a", Source: SourceSecondary, Path: "3"},
			{DisplayName: "a", Source: SourceSecondary, Path: "4"},
		}
		SortEntries(entries)
		paths := []string{entries[0].Path, entries[1].Path, entries[2].Path, entries[3].Path}
		gomega.Expect(paths).To(gomega.Equal([]string{"2", "3", "4", "1"}))
	})
})
