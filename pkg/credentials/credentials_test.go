package credentials_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/credentials"
)

var _ = Describe("Manager", func() {
	var (
		tmpDir string
		mgr    *credentials.Manager
	)

	writeFile := func(body string) {
		ExpectWithOffset(1, os.WriteFile(filepath.Join(tmpDir, "credentials.toml"), []byte(body), 0o600)).To(Succeed())
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		var err error
		mgr, err = credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("targets credentials.toml in the override directory", func() {
		Expect(mgr.GetTarget()).To(Equal(filepath.Join(tmpDir, "credentials.toml")))
	})

	Describe("Load", func() {
		It("returns empty credentials when no file exists", func() {
			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Version).To(Equal(0))
			Expect(creds.Providers).To(BeEmpty())
		})

		It("loads existing credentials", func() {
			writeFile("version = 0\n\n[providers.openrouter]\napi_key = \"sk-or-test\"\n")

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Providers).To(HaveKeyWithValue("openrouter", HaveField("APIKey", "sk-or-test")))
		})

		It("rejects malformed TOML", func() {
			writeFile("not valid [[[")

			creds, err := mgr.Load()
			Expect(err).To(MatchError(ContainSubstring("parsing credentials")))
			Expect(creds).To(BeNil())
		})

		It("rejects an unknown version", func() {
			writeFile("version = 3\n")

			_, err := mgr.Load()
			Expect(err).To(MatchError(ContainSubstring("unsupported credentials version 3")))
		})
	})

	Describe("Save", func() {
		It("writes an owner-only file and leaves no temp files behind", func() {
			Expect(mgr.Save(&credentials.Credentials{
				Providers: map[string]credentials.ProviderCredential{"openai": {APIKey: "sk-test"}},
			})).To(Succeed())

			info, err := os.Stat(mgr.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			entries, err := os.ReadDir(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
		})

		It("replaces an existing file", func() {
			writeFile("version = 0\n\n[providers.openai]\napi_key = \"old\"\n")
			Expect(mgr.Save(&credentials.Credentials{})).To(Succeed())

			key, err := mgr.GetKey("openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(BeEmpty())
		})

		It("rejects nil credentials", func() {
			Expect(mgr.Save(nil)).To(MatchError("cannot save nil credentials"))
		})
	})

	Describe("SetKey and GetKey", func() {
		It("round-trips a key with its update time", func() {
			before := time.Now().UTC().Add(-time.Second)
			Expect(mgr.SetKey("openai", "sk-new-key")).To(Succeed())

			key, err := mgr.GetKey("openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-new-key"))

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Providers["openai"].UpdatedAt).To(BeTemporally(">", before))
		})

		It("normalizes provider names", func() {
			Expect(mgr.SetKey(" OpenAI ", "sk-mixed")).To(Succeed())

			key, err := mgr.GetKey("openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-mixed"))
		})

		It("overwrites one provider and keeps the others", func() {
			Expect(mgr.SetKey("openai", "sk-1")).To(Succeed())
			Expect(mgr.SetKey("openrouter", "sk-or")).To(Succeed())
			Expect(mgr.SetKey("openai", "sk-2")).To(Succeed())

			Expect(mgr.GetKey("openai")).To(Equal("sk-2"))
			Expect(mgr.GetKey("openrouter")).To(Equal("sk-or"))
		})

		It("returns an empty key for unknown providers", func() {
			Expect(mgr.GetKey("nobody")).To(BeEmpty())
		})
	})

	Describe("RemoveKey", func() {
		It("removes an existing key", func() {
			Expect(mgr.SetKey("openai", "sk-test")).To(Succeed())
			Expect(mgr.RemoveKey("openai")).To(Succeed())
			Expect(mgr.GetKey("openai")).To(BeEmpty())
		})

		It("is a no-op for a provider without a key", func() {
			Expect(mgr.RemoveKey("openrouter")).To(Succeed())
		})
	})

	Describe("ListProviders", func() {
		It("returns stored providers in sorted order", func() {
			Expect(mgr.ListProviders()).To(BeEmpty())

			Expect(mgr.SetKey("openrouter", "b")).To(Succeed())
			Expect(mgr.SetKey("openai", "a")).To(Succeed())

			Expect(mgr.ListProviders()).To(Equal([]string{"openai", "openrouter"}))
		})
	})
})

var _ = Describe("provider table", func() {
	It("maps providers to their environment variables", func() {
		Expect(credentials.EnvVarForProvider("openai")).To(Equal("OPENAI_API_KEY"))
		Expect(credentials.EnvVarForProvider("OpenRouter")).To(Equal("OPENROUTER_API_KEY"))
		Expect(credentials.EnvVarForProvider("ollama")).To(BeEmpty())
	})

	It("lists supported providers in sorted order", func() {
		Expect(credentials.SupportedProviders()).To(Equal([]string{"openai", "openrouter"}))
		Expect(credentials.IsSupportedProvider("openrouter")).To(BeTrue())
		Expect(credentials.IsSupportedProvider("anthropic")).To(BeFalse())
	})
})

var _ = Describe("ResolveToken", func() {
	var mgr *credentials.Manager

	BeforeEach(func() {
		var err error
		mgr, err = credentials.NewManager(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		GinkgoT().Setenv(credentials.TokenEnvVar, "")
		GinkgoT().Setenv("OPENAI_API_KEY", "")
	})

	It("prefers the flag value", func() {
		GinkgoT().Setenv(credentials.TokenEnvVar, "sk-env")
		Expect(mgr.SetKey("openai", "sk-stored")).To(Succeed())

		token, src, err := mgr.ResolveToken("sk-flag", "openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("sk-flag"))
		Expect(src).To(Equal(credentials.SourceFlag))
	})

	It("uses CHATSTREAM_CLIENT_TOKEN before the provider variable", func() {
		GinkgoT().Setenv(credentials.TokenEnvVar, "sk-chatstream")
		GinkgoT().Setenv("OPENAI_API_KEY", "sk-openai")

		token, src, err := mgr.ResolveToken("", "openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("sk-chatstream"))
		Expect(src).To(Equal(credentials.SourceEnv))
	})

	It("falls back to the provider variable", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "sk-openai")

		token, _, err := mgr.ResolveToken("", "openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("sk-openai"))
	})

	It("falls back to credentials.toml", func() {
		Expect(mgr.SetKey("openai", "sk-stored")).To(Succeed())

		token, src, err := mgr.ResolveToken("", "openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("sk-stored"))
		Expect(src).To(Equal(credentials.SourceStore))
	})

	It("returns an empty token when nothing is configured", func() {
		token, src, err := mgr.ResolveToken("", "openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(BeEmpty())
		Expect(src).To(Equal(credentials.SourceNone))
	})
})
