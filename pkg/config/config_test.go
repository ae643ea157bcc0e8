package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeConfig := func(data string) {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())
	}

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			writeConfig(`version = 0

[data]
folder = "/srv/docs"
append_log = "history.log"

[storage]
dir = "/srv/index"

[chunking]
size = 300
overlap = 50

[sync]
debounce_ms = 500
workers = 8
watch = false

[api]
listen = ":9000"

[client]
api_target = "http://myhost:9000"

[vector_store]
provider = "sqlite"

[embedding]
provider = "ollama"
target = "http://gpu:11434"
model = "nomic-embed-text"
dimensions = 768

[events]
provider = "kafka"
brokers = ["k1:9092", "k2:9092"]
topic = "rag.events"

[retrieval]
top_k = 5
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Data.Folder).To(Equal("/srv/docs"))
			Expect(cfg.Data.AppendLog).To(Equal("history.log"))
			Expect(cfg.Storage.Dir).To(Equal("/srv/index"))
			Expect(cfg.Chunking.Size).To(Equal(300))
			Expect(cfg.Chunking.Overlap).To(Equal(50))
			Expect(cfg.Sync.DebounceMs).To(Equal(uint(500)))
			Expect(cfg.Sync.Workers).To(Equal(uint(8)))
			Expect(cfg.Sync.Watch).To(BeFalse())
			Expect(cfg.API.Listen).To(Equal(":9000"))
			Expect(cfg.Client.APITarget).To(Equal("http://myhost:9000"))
			Expect(cfg.VectorStore.Provider).To(Equal("sqlite"))
			Expect(cfg.Embedding.Target).To(Equal("http://gpu:11434"))
			Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
			Expect(cfg.Events.Provider).To(Equal("kafka"))
			Expect(cfg.Events.Brokers).To(Equal([]string{"k1:9092", "k2:9092"}))
			Expect(cfg.Events.Topic).To(Equal("rag.events"))
			Expect(cfg.Retrieval.TopK).To(Equal(uint(5)))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig(`[chunking]
size = 200
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Chunking.Size).To(Equal(200))
			Expect(cfg.Chunking.Overlap).To(Equal(defaults.Chunking.Overlap))
			Expect(cfg.Data.Folder).To(Equal(defaults.Data.Folder))
			Expect(cfg.Data.AppendLog).To(Equal(defaults.Data.AppendLog))
			Expect(cfg.Embedding.Model).To(Equal(defaults.Embedding.Model))
			Expect(cfg.Retrieval.TopK).To(Equal(defaults.Retrieval.TopK))
			Expect(cfg.Sync.Watch).To(BeTrue())
		})

		It("keeps an explicitly disabled append log", func() {
			writeConfig(`[data]
append_log = ""
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Data.AppendLog).To(BeEmpty())
			Expect(cfg.ResolveAppendLog()).To(BeEmpty())
		})

		It("returns error for malformed TOML", func() {
			writeConfig("not valid toml [[[")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(cfg).To(BeNil())
		})

		It("returns error for unsupported config version", func() {
			writeConfig("version = 99\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version"))
			Expect(cfg).To(BeNil())
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			cfg := config.NewDefaultConfig()
			cfg.Data.Folder = "/srv/docs"
			cfg.Chunking.Overlap = 0
			cfg.Embedding.Dimensions = 768

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(cfg)).To(Succeed())

			_, err = os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Data.Folder).To(Equal("/srv/docs"))
			Expect(loaded.Chunking.Overlap).To(Equal(0))
			Expect(loaded.Embedding.Dimensions).To(Equal(uint(768)))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).NotTo(Succeed())
		})

		It("round-trips every field", func() {
			cfg, err := config.PresetConfig("mxbai")
			Expect(err).NotTo(HaveOccurred())
			cfg.Events.Provider = "kafka"
			cfg.Events.Brokers = []string{"k1:9092"}
			cfg.Sync.Watch = false

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})
	})

	Describe("SetConfigValue", func() {
		It("sets a string config key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SetConfigValue("data.folder", "/srv/docs")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Data.Folder).To(Equal("/srv/docs"))
		})

		It("sets numeric and boolean keys", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SetConfigValue("chunking.size", "250")).To(Succeed())
			Expect(c.SetConfigValue("chunking.overlap", "25")).To(Succeed())
			Expect(c.SetConfigValue("sync.watch", "false")).To(Succeed())
			Expect(c.SetConfigValue("retrieval.top_k", "7")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Chunking.Size).To(Equal(250))
			Expect(cfg.Chunking.Overlap).To(Equal(25))
			Expect(cfg.Sync.Watch).To(BeFalse())
			Expect(cfg.Retrieval.TopK).To(Equal(uint(7)))
		})

		It("splits comma separated broker lists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SetConfigValue("events.brokers", "k1:9092, k2:9092,")).To(Succeed())

			value, err := c.GetConfigValue("events.brokers")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("k1:9092,k2:9092"))
		})

		It("preserves existing values when setting a new key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SetConfigValue("storage.dir", "/srv/index")).To(Succeed())
			Expect(c.SetConfigValue("api.listen", ":9000")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Dir).To(Equal("/srv/index"))
			Expect(cfg.API.Listen).To(Equal(":9000"))
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = c.SetConfigValue("nonexistent_key", "value")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("returns error for invalid numeric value", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = c.SetConfigValue("embedding.dimensions", "not-a-number")
			Expect(err).To(MatchError(ContainSubstring("invalid value")))
		})

		It("refuses an overlap that would stall the chunker", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = c.SetConfigValue("chunking.overlap", "500")
			Expect(err).To(MatchError(ContainSubstring("chunking.overlap")))

			_, err = os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("refuses an unknown vector store provider", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = c.SetConfigValue("vector_store.provider", "chroma")
			Expect(err).To(MatchError(ContainSubstring("unknown vector_store.provider")))
		})

		It("refuses kafka events without brokers", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = c.SetConfigValue("events.provider", "kafka")
			Expect(err).To(MatchError(ContainSubstring("events.brokers")))
		})
	})

	Describe("GetConfigValue", func() {
		It("gets a set config value", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SetConfigValue("embedding.model", "nomic-embed-text")).To(Succeed())

			value, err := c.GetConfigValue("embedding.model")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("nomic-embed-text"))
		})

		It("returns default values when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			value, err := c.GetConfigValue("api.listen")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal(":8000"))

			value, err = c.GetConfigValue("chunking.size")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("500"))
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.GetConfigValue("proxy.listen")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})
	})

	Describe("ValidConfigKeys", func() {
		It("returns every key in section order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys).To(HaveLen(19))
			Expect(keys[0]).To(Equal("data.folder"))
			Expect(keys[len(keys)-1]).To(Equal("retrieval.top_k"))
			Expect(keys).To(ContainElements("chunking.overlap", "events.brokers", "sync.watch"))
		})

		It("returns keys in stable order", func() {
			Expect(config.ValidConfigKeys()).To(Equal(config.ValidConfigKeys()))
		})
	})

	Describe("IsValidConfigKey", func() {
		It("returns true for valid keys", func() {
			Expect(config.IsValidConfigKey("data.folder")).To(BeTrue())
			Expect(config.IsValidConfigKey("embedding.dimensions")).To(BeTrue())
		})

		It("returns false for invalid keys", func() {
			Expect(config.IsValidConfigKey("folder")).To(BeFalse())
			Expect(config.IsValidConfigKey("")).To(BeFalse())
		})
	})
})

var _ = Describe("PresetConfig", func() {
	DescribeTable("sets model and dimensions",
		func(name, model string, dims uint) {
			cfg, err := config.PresetConfig(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Embedding.Model).To(Equal(model))
			Expect(cfg.Embedding.Dimensions).To(Equal(dims))
			Expect(cfg.Validate()).To(Succeed())
		},
		Entry("minilm", "minilm", "all-minilm", uint(384)),
		Entry("nomic", "nomic", "nomic-embed-text", uint(768)),
		Entry("mxbai", "MXBAI", "mxbai-embed-large", uint(1024)),
	)

	It("returns error for unknown preset", func() {
		_, err := config.PresetConfig("openai")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
	})

	It("lists the preset names", func() {
		Expect(config.ValidPresetNames()).To(Equal([]string{"minilm", "nomic", "mxbai"}))
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns defaults for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.NewDefaultConfig()))
	})

	It("returns error for invalid TOML", func() {
		_, err := config.ParseConfigTOML([]byte("[[["))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ResolveAppendLog", func() {
	It("resolves relative paths against the data folder", func() {
		cfg := config.NewDefaultConfig()
		cfg.Data.Folder = "/srv/docs"
		Expect(cfg.ResolveAppendLog()).To(Equal(filepath.Join("/srv/docs", "chat_history.txt")))
	})

	It("keeps absolute paths", func() {
		cfg := config.NewDefaultConfig()
		cfg.Data.AppendLog = "/var/log/chat.txt"
		Expect(cfg.ResolveAppendLog()).To(Equal("/var/log/chat.txt"))
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FromViper(v)).To(Equal(config.NewDefaultConfig()))
	})

	It("reads config file values over defaults", func() {
		data := `[data]
folder = "/srv/docs"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("data.folder")).To(Equal("/srv/docs"))
		Expect(v.GetString("storage.dir")).To(Equal(config.NewDefaultConfig().Storage.Dir))
	})

	It("env vars take precedence over config file values", func() {
		data := `[api]
listen = ":5555"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		GinkgoT().Setenv("LETTARAG_API_LISTEN", ":6666")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("api.listen")).To(Equal(":6666"))
	})

	It("splits broker lists read from the environment", func() {
		GinkgoT().Setenv("LETTARAG_EVENTS_BROKERS", "k1:9092,k2:9092")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FromViper(v).Events.Brokers).To(Equal([]string{"k1:9092", "k2:9092"}))
	})
})

var _ = Describe("BindFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &listen)
		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListen})
		Expect(v.GetString("api.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		data := `[api]
listen = ":5555"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &listen)

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListen})
		Expect(v.GetString("api.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.FlagSet{}, []string{"nonexistent"})
		Expect(v.GetString("api.listen")).To(Equal(config.NewDefaultConfig().API.Listen))
	})

	It("AddStringFlag pulls name, shorthand, and description from FlagSet", func() {
		cmd := &cobra.Command{Use: "test"}
		var storage string
		config.AddStringFlag(cmd, config.Flags, config.FlagStorageDir, &storage)

		f := cmd.Flags().Lookup("storage")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("s"))
		Expect(f.Usage).To(Equal("Directory holding the index snapshot"))
		Expect(f.DefValue).To(Equal(config.NewDefaultConfig().Storage.Dir))
	})

	It("AddUintFlag carries the configured default", func() {
		cmd := &cobra.Command{Use: "test"}
		var topK uint
		config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &topK)

		f := cmd.Flags().Lookup("top-k")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("k"))
		Expect(f.DefValue).To(Equal("3"))
	})
})
