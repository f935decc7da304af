package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/iguana-debugger/libiguana/config"
	"github.com/iguana-debugger/libiguana/jimulator"
)

var _ = Describe("Config", func() {
	Describe("DefaultConfig", func() {
		It("should use the standard tool locations", func() {
			cfg := config.DefaultConfig()
			Expect(cfg.Jimulator).To(Equal("jimulator"))
			Expect(cfg.Aasm).To(Equal(jimulator.DefaultAasmPath))
			Expect(cfg.Mnemonics).To(Equal(jimulator.DefaultMnemonicsPath))
			Expect(cfg.PollInterval()).To(Equal(50 * time.Millisecond))
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should produce one option per tool path", func() {
			Expect(config.DefaultConfig().SessionOptions()).To(HaveLen(2))
		})
	})

	Describe("Load and save", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("should round-trip through a file", func() {
			cfg := config.DefaultConfig()
			cfg.Jimulator = "/opt/jimulator/bin/jimulator"
			cfg.PollIntervalMS = 10
			cfg.Trace = true

			path := filepath.Join(dir, "iguana.json")
			Expect(cfg.SaveConfig(path)).To(Succeed())

			loaded, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("should keep defaults for missing fields", func() {
			path := filepath.Join(dir, "partial.json")
			Expect(os.WriteFile(path, []byte(`{"verbosity": 2}`), 0o644)).To(Succeed())

			cfg, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Verbosity).To(Equal(2))
			Expect(cfg.Jimulator).To(Equal("jimulator"))
			Expect(cfg.PollIntervalMS).To(Equal(uint64(50)))
		})

		It("should fail on a missing file", func() {
			_, err := config.LoadConfig(filepath.Join(dir, "nope.json"))
			Expect(err).To(MatchError(ContainSubstring("failed to read config file")))
		})

		It("should fail on malformed JSON", func() {
			path := filepath.Join(dir, "bad.json")
			Expect(os.WriteFile(path, []byte(`{`), 0o644)).To(Succeed())

			_, err := config.LoadConfig(path)
			Expect(err).To(MatchError(ContainSubstring("failed to parse config")))
		})
	})

	Describe("Validate", func() {
		It("should require a simulator path", func() {
			cfg := config.DefaultConfig()
			cfg.Jimulator = ""
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should require a positive poll interval", func() {
			cfg := config.DefaultConfig()
			cfg.PollIntervalMS = 0
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject negative verbosity", func() {
			cfg := config.DefaultConfig()
			cfg.Verbosity = -1
			Expect(cfg.Validate()).NotTo(Succeed())
		})
	})

	It("should clone independently", func() {
		cfg := config.DefaultConfig()
		clone := cfg.Clone()
		clone.Aasm = "/elsewhere/aasm"
		Expect(cfg.Aasm).To(Equal(jimulator.DefaultAasmPath))
	})
})
