package askcmder_test

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/chatstream/cmd/chatstream/ask"
	"github.com/papercomputeco/chatstream/pkg/credentials"
	testutils "github.com/papercomputeco/chatstream/pkg/utils/test"
)

// withRoot mounts cmd under a parent carrying the global flags.
func withRoot(cmd *cobra.Command) *cobra.Command {
	root := &cobra.Command{Use: "chatstream", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().BoolP("debug", "d", false, "")
	root.PersistentFlags().String("config-dir", "", "")
	root.PersistentFlags().Bool("log-json", false, "")
	root.PersistentFlags().String("log-file", "", "")
	root.AddCommand(cmd)
	return root
}

var _ = Describe("NewAskCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := askcmder.NewAskCmd()
		Expect(cmd.Use).To(Equal("ask [prompt...]"))
	})

	It("registers the client flags", func() {
		cmd := askcmder.NewAskCmd()
		for _, name := range []string{"model", "host", "timeout", "token", "system", "name", "render", "stats", "otlp-endpoint"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
		Expect(cmd.Flags().Lookup("model").Shorthand).To(Equal("m"))
		Expect(cmd.Flags().Lookup("system").Shorthand).To(Equal("s"))
	})
})

var _ = Describe("Ask command execution", func() {
	var (
		configDir string
		upstream  *testutils.Upstream
		stdout    *testutils.SyncBuffer
		stderr    *testutils.SyncBuffer
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		GinkgoT().Setenv(credentials.TokenEnvVar, "")
		GinkgoT().Setenv("OPENAI_API_KEY", "")
		stdout = &testutils.SyncBuffer{}
		stderr = &testutils.SyncBuffer{}

		upstream = testutils.NewUpstream(testutils.SSEHandler(
			testutils.Delta("Hel"),
			testutils.Delta("lo"),
			`data: {"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":1200,"completion_tokens":2,"total_tokens":1202}}`+"\n\n",
			testutils.Done,
		))
		DeferCleanup(upstream.Close)
	})

	execute := func(cmd *cobra.Command, args ...string) error {
		root := withRoot(cmd)
		root.SetOut(stdout)
		root.SetErr(stderr)
		root.SetArgs(append([]string{"ask", "--config-dir", configDir, "--host", upstream.URL}, args...))
		return root.Execute()
	}

	It("streams the answer to stdout", func() {
		Expect(execute(askcmder.NewAskCmd(), "say", "hello")).To(Succeed())
		Expect(stdout.String()).To(Equal("Hello\n"))

		seen := upstream.Requests()
		Expect(seen).To(HaveLen(1))
		Expect(seen[0].Stream).To(BeTrue())
		Expect(seen[0].Model).To(Equal("gpt-4o-mini"))
		Expect(seen[0].Messages).To(HaveLen(1))
		Expect(seen[0].Messages[0].Content).To(Equal("say hello"))
		Expect(seen[0].Authorization).To(BeEmpty())
	})

	It("sends the system prompt, name, model and token", func() {
		Expect(execute(askcmder.NewAskCmd(), "-m", "gpt-4.1", "-s", "be brief", "--name", "ana", "--token", "sk-flag", "hi")).To(Succeed())

		seen := upstream.Requests()
		Expect(seen[0].Authorization).To(Equal("Bearer sk-flag"))
		Expect(seen[0].Model).To(Equal("gpt-4.1"))
		Expect(seen[0].Messages).To(HaveLen(2))
		Expect(seen[0].Messages[0].Role).To(Equal("system"))
		Expect(seen[0].Messages[1].Name).To(Equal("ana"))
	})

	It("uses a stored credential when no flag or env token is set", func() {
		mgr, err := credentials.NewManager(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.SetKey("openai", "sk-stored")).To(Succeed())

		Expect(execute(askcmder.NewAskCmd(), "hi")).To(Succeed())
		Expect(upstream.Requests()[0].Authorization).To(Equal("Bearer sk-stored"))
	})

	It("resolves the openrouter credential when client.provider selects it", func() {
		GinkgoT().Setenv("OPENROUTER_API_KEY", "")
		mgr, err := credentials.NewManager(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.SetKey("openai", "sk-openai")).To(Succeed())
		Expect(mgr.SetKey("openrouter", "sk-or-stored")).To(Succeed())
		Expect(os.WriteFile(configDir+"/config.toml", []byte("[client]\nprovider = \"openrouter\"\n"), 0o600)).To(Succeed())

		Expect(execute(askcmder.NewAskCmd(), "hi")).To(Succeed())
		Expect(upstream.Requests()[0].Authorization).To(Equal("Bearer sk-or-stored"))
	})

	It("prefers OPENROUTER_API_KEY over the stored openrouter key", func() {
		GinkgoT().Setenv("CHATSTREAM_CLIENT_PROVIDER", "openrouter")
		GinkgoT().Setenv("OPENROUTER_API_KEY", "sk-or-env")
		mgr, err := credentials.NewManager(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.SetKey("openrouter", "sk-or-stored")).To(Succeed())

		Expect(execute(askcmder.NewAskCmd(), "hi")).To(Succeed())
		Expect(upstream.Requests()[0].Authorization).To(Equal("Bearer sk-or-env"))
	})

	It("reads the model from config.toml", func() {
		Expect(os.WriteFile(configDir+"/config.toml", []byte("[client]\nmodel = \"from-file\"\n"), 0o600)).To(Succeed())

		Expect(execute(askcmder.NewAskCmd(), "hi")).To(Succeed())
		Expect(upstream.Requests()[0].Model).To(Equal("from-file"))
	})

	It("reads the prompt from stdin", func() {
		cmd := askcmder.NewAskCmd()
		root := withRoot(cmd)
		root.SetIn(strings.NewReader("  piped prompt \n"))
		root.SetOut(stdout)
		root.SetErr(stderr)
		root.SetArgs([]string{"ask", "--config-dir", configDir, "--host", upstream.URL})

		Expect(root.Execute()).To(Succeed())
		Expect(upstream.Requests()[0].Messages[0].Content).To(Equal("piped prompt"))
	})

	It("fails without a prompt and makes no request", func() {
		cmd := askcmder.NewAskCmd()
		root := withRoot(cmd)
		root.SetIn(strings.NewReader(""))
		root.SetOut(stdout)
		root.SetErr(stderr)
		root.SetArgs([]string{"ask", "--config-dir", configDir, "--host", upstream.URL})

		Expect(root.Execute()).To(MatchError(ContainSubstring("prompt required")))
		Expect(upstream.Requests()).To(BeEmpty())
	})

	It("rejects an invalid timeout before any request", func() {
		err := execute(askcmder.NewAskCmd(), "--timeout", "whenever", "hi")
		Expect(err).To(MatchError(ContainSubstring("loading config")))
		Expect(upstream.Requests()).To(BeEmpty())
	})

	It("returns upstream failures as errors", func() {
		upstream.SetHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
		})

		err := execute(askcmder.NewAskCmd(), "hi")
		Expect(err).To(MatchError(ContainSubstring("bad key")))
		Expect(stdout.String()).To(BeEmpty())
	})

	It("prints statistics with --stats", func() {
		Expect(execute(askcmder.NewAskCmd(), "--stats", "hi")).To(Succeed())
		Expect(stderr.String()).To(ContainSubstring("1,200"))
		Expect(stderr.String()).To(ContainSubstring("stop"))
		Expect(stderr.String()).To(ContainSubstring("completed"))
	})

	It("renders markdown with --render", func() {
		upstream.SetHandler(testutils.SSEHandler(testutils.Delta("# Title\n\nbody"), testutils.Done))

		Expect(execute(askcmder.NewAskCmd(), "--render", "hi")).To(Succeed())
		Expect(stdout.String()).To(ContainSubstring("Title"))
		Expect(stdout.String()).To(ContainSubstring("body"))
		Expect(stderr.String()).To(ContainSubstring("Generating"))
	})

	It("keeps the partial answer on Ctrl+C", func() {
		upstream.SetHandler(func(w http.ResponseWriter, r *http.Request) {
			testutils.SSEHandler(testutils.Delta("Hel"))(w, r)
			<-r.Context().Done()
		})

		sigs := make(chan os.Signal, 1)
		cmd := askcmder.NewAskCmdWithInterrupts(func(context.Context) <-chan os.Signal { return sigs })

		errc := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			errc <- execute(cmd, "hi")
		}()

		Eventually(stdout.String).Should(Equal("Hel"))
		sigs <- os.Interrupt

		Eventually(errc).Should(Receive(BeNil()))
		Expect(stdout.String()).To(Equal("Hel\n"))
		Expect(stderr.String()).To(ContainSubstring("(cancelled)"))
	})
})
