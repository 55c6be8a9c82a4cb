package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/klxm/synch/internal/api"
	v1 "github.com/klxm/synch/internal/api/v1"
	"github.com/klxm/synch/internal/config"
	"github.com/klxm/synch/internal/sync"
	"github.com/klxm/synch/test-integration/synch/helpers"
)

var _ = Describe("Sync API", Label("api"), func() {
	var (
		tempDir string
		env     *helpers.Env
		server  *httptest.Server
		client  *http.Client
	)

	BeforeEach(func() {
		tempDir = createTempDir("synch-api-")
		env = helpers.NewEnv(ctx, tempDir, func(cfg *config.Config) {
			cfg.Options.SyncBackend = true
		})
		server = env.NewAPIServer()
		client = &http.Client{Timeout: 10 * time.Second}
	})

	AfterEach(func() {
		server.Close()
		env.Close()
		cleanupTempDir(tempDir)
	})

	post := func(path, body string) *http.Response {
		resp, err := client.Post(server.URL+path, "application/json", strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	It("should report liveness", func() {
		resp, err := client.Get(server.URL + "/health")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("should run a sync and expose its outcome in the status", func() {
		env.SeedRecord(ctx, sync.Modules, "Hero", map[string]string{"input": "a"}, time.Now().Add(-time.Hour).UTC())

		resp := post("/v1/sync", `{"only":["modules"]}`)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var report v1.ReportResponse
		decode(resp, &report)
		Expect(report.Failed).To(BeFalse())
		Expect(report.Kinds).To(HaveLen(1))
		Expect(report.Kinds[0].Kind).To(Equal("modules"))
		Expect(report.Kinds[0].Written).To(Equal(1))

		statusResp, err := client.Get(server.URL + "/v1/sync/status")
		Expect(err).NotTo(HaveOccurred())
		Expect(statusResp.StatusCode).To(Equal(http.StatusOK))
		var st v1.StatusResponse
		decode(statusResp, &st)
		Expect(st.LastRunID).To(Equal(report.RunID))
		Expect(st.LastSyncAt).NotTo(BeNil())
		Expect(st.AutoSyncPaused).To(BeFalse())
	})

	It("should pause and resume automatic syncs", func() {
		resp := post("/v1/sync/pause", "")
		resp.Body.Close()
		Expect(resp.StatusCode).To(BeNumerically("<", 300))
		Expect(env.Manager.IsAutoSyncPaused(ctx)).To(BeTrue())

		resp = post("/v1/sync/auto", "")
		var auto v1.AutoSyncResponse
		decode(resp, &auto)
		Expect(auto.Reason).To(Equal(sync.ReasonPaused))
		Expect(auto.Report).To(BeNil())

		resp = post("/v1/sync/resume", "")
		resp.Body.Close()
		Expect(env.Manager.IsAutoSyncPaused(ctx)).To(BeFalse())
	})

	It("should sync before requests from enabled origins", func() {
		env.SeedRecord(ctx, sync.Templates, "Landing", map[string]string{"content": "x"}, time.Now().Add(-time.Hour).UTC())

		req, err := http.NewRequest(http.MethodGet, server.URL+"/health", nil)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set(api.OriginHeader, string(sync.OriginBackend))
		resp, err := client.Do(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()

		Expect(env.ReadItemFile(sync.Templates, "landing", "template.php")).To(Equal("x"))
	})

	It("should not sync for disabled origins", func() {
		env.SeedRecord(ctx, sync.Templates, "Landing", map[string]string{"content": "x"}, time.Now().Add(-time.Hour).UTC())

		req, err := http.NewRequest(http.MethodGet, server.URL+"/health", nil)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set(api.OriginHeader, string(sync.OriginFrontend))
		resp, err := client.Do(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()

		_, err = env.FS.Stat("templates/landing")
		Expect(err).To(HaveOccurred())
	})

	It("should list duplicate names", func() {
		past := time.Now().Add(-time.Hour).UTC()
		env.SeedRecord(ctx, sync.Modules, "Teaser", nil, past)
		env.SeedRecord(ctx, sync.Modules, "Teaser", nil, past)

		resp, err := client.Get(server.URL + "/v1/sync/duplicates")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var groups []v1.DuplicateResponse
		decode(resp, &groups)
		Expect(groups).To(HaveLen(1))
		Expect(groups[0].Name).To(Equal("Teaser"))
		Expect(groups[0].DuplicateIDs).To(HaveLen(1))
	})
})
