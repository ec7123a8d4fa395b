package config_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	internalconfig "github.com/nightshift-sh/nightshift/internal/config"
)

var _ = Describe("Loader", func() {
	var (
		homeDir string
		workDir string
		loader  *internalconfig.Loader
	)

	writeConfig := func(dir, content string) {
		configDir := filepath.Join(dir, internalconfig.ConfigDir)
		Expect(os.MkdirAll(configDir, 0o700)).To(Succeed())
		Expect(os.WriteFile(
			filepath.Join(configDir, internalconfig.ConfigFile),
			[]byte(content),
			0o600,
		)).To(Succeed())
	}

	BeforeEach(func() {
		homeDir = GinkgoT().TempDir()
		workDir = GinkgoT().TempDir()
		loader = internalconfig.NewLoaderWithDirs(homeDir, workDir)
	})

	It("loads pure defaults when no files exist", func() {
		cfg, err := loader.Load()

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.GetDivert().IsEnabled()).To(BeTrue())
		Expect(cfg.GetDivert().GetMaxBlockersPerRun()).To(Equal(25))
		Expect(cfg.GetContinuation().GetCompletionMarker()).To(Equal("ALL_TASKS_COMPLETE"))
		Expect(cfg.GetState().GetFile()).To(Equal(".nightshift/state.json"))
	})

	It("applies global config over defaults", func() {
		writeConfig(homeDir, `
[divert]
max_blockers_per_run = 10
cooldown = "45s"
`)

		cfg, err := loader.Load()

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.GetDivert().GetMaxBlockersPerRun()).To(Equal(10))
		Expect(cfg.GetDivert().GetCooldown()).To(Equal(45 * time.Second))
	})

	It("applies project config over global config", func() {
		writeConfig(homeDir, `
[divert]
max_blockers_per_run = 10
`)
		writeConfig(workDir, `
[divert]
max_blockers_per_run = 7
`)

		cfg, err := loader.Load()

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.GetDivert().GetMaxBlockersPerRun()).To(Equal(7))
	})

	It("applies environment variables over files", func() {
		writeConfig(workDir, `
[continuation]
max_reprompts = 3
`)
		GinkgoT().Setenv("NIGHTSHIFT_CONTINUATION_MAX_REPROMPTS", "8")

		cfg, err := loader.Load()

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.GetContinuation().GetMaxReprompts()).To(Equal(8))
	})

	It("parses the disable flag from project config", func() {
		writeConfig(workDir, `
[divert]
enabled = false
`)

		cfg, err := loader.Load()

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.GetDivert().IsEnabled()).To(BeFalse())
	})

	It("rejects malformed TOML", func() {
		writeConfig(workDir, "[divert\nbroken")

		_, err := loader.Load()

		Expect(errors.Is(err, internalconfig.ErrInvalidTOML)).To(BeTrue())
	})

	It("rejects a world-writable config file", func() {
		writeConfig(workDir, "[divert]\n")
		Expect(os.Chmod(loader.ProjectConfigPath(), 0o666)).To(Succeed())

		_, err := loader.Load()

		Expect(errors.Is(err, internalconfig.ErrInvalidPermissions)).To(BeTrue())
	})
})

var _ = Describe("SetProjectDivertEnabled", func() {
	var (
		workDir string
		loader  *internalconfig.Loader
	)

	BeforeEach(func() {
		workDir = GinkgoT().TempDir()
		loader = internalconfig.NewLoaderWithDirs(GinkgoT().TempDir(), workDir)
	})

	It("creates the project config when missing", func() {
		Expect(loader.SetProjectDivertEnabled(false)).To(Succeed())

		cfg, err := loader.Load()

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.GetDivert().IsEnabled()).To(BeFalse())
	})

	It("preserves unrelated keys on rewrite", func() {
		configDir := filepath.Join(workDir, internalconfig.ConfigDir)
		Expect(os.MkdirAll(configDir, 0o700)).To(Succeed())
		Expect(os.WriteFile(loader.ProjectConfigPath(), []byte(`
[divert]
max_blockers_per_run = 9

[continuation]
max_reprompts = 2
`), 0o600)).To(Succeed())

		Expect(loader.SetProjectDivertEnabled(false)).To(Succeed())

		cfg, err := loader.Load()

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.GetDivert().IsEnabled()).To(BeFalse())
		Expect(cfg.GetDivert().GetMaxBlockersPerRun()).To(Equal(9))
		Expect(cfg.GetContinuation().GetMaxReprompts()).To(Equal(2))
	})

	It("re-enables after a disable", func() {
		Expect(loader.SetProjectDivertEnabled(false)).To(Succeed())
		Expect(loader.SetProjectDivertEnabled(true)).To(Succeed())

		cfg, err := loader.Load()

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.GetDivert().IsEnabled()).To(BeTrue())
	})
})
