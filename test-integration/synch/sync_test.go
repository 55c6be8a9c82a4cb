package integration

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/klxm/synch/internal/config"
	"github.com/klxm/synch/internal/metadata"
	"github.com/klxm/synch/internal/sync"
	"github.com/klxm/synch/test-integration/synch/helpers"
)

var _ = Describe("Reconciliation", Label("sync"), func() {
	var (
		tempDir string
		env     *helpers.Env
		past    time.Time
	)

	BeforeEach(func() {
		tempDir = createTempDir("synch-sync-")
		env = helpers.NewEnv(ctx, tempDir)
		past = time.Now().Add(-2 * time.Hour).UTC().Truncate(time.Second)
	})

	AfterEach(func() {
		env.Close()
		cleanupTempDir(tempDir)
	})

	run := func(opts sync.StartOptions) *sync.Report {
		report, err := env.Manager.Start(ctx, opts)
		Expect(err).NotTo(HaveOccurred())
		return report
	}

	Context("Store to disk", func() {
		It("should mirror every kind and assign keys", func() {
			env.SeedRecord(ctx, sync.Modules, "Hero Banner",
				map[string]string{"input": "<?php // in", "output": "<?php // out"}, past)
			env.SeedRecord(ctx, sync.Templates, "Default Layout",
				map[string]string{"content": "<html></html>"}, past)
			env.SeedRecord(ctx, sync.Actions, "Delete Button",
				map[string]string{"preview": "p", "presave": "s", "postsave": "o"}, past)

			report := run(sync.StartOptions{})
			Expect(report.Failed()).To(BeFalse())
			Expect(report.Kinds).To(HaveLen(3))
			for _, k := range report.Kinds {
				Expect(k.Result.KeysAssigned).To(Equal(1), k.Kind)
				Expect(k.Result.Written).To(Equal(1), k.Kind)
			}

			Expect(env.ReadItemFile(sync.Modules, "hero_banner", "input.php")).To(Equal("<?php // in"))
			Expect(env.ReadItemFile(sync.Templates, "default_layout", "template.php")).To(Equal("<html></html>"))
			Expect(env.ReadItemFile(sync.Actions, "delete_button", "action.php")).To(ContainSubstring("// === PRESAVE ==="))

			desc := env.Descriptor(sync.Modules, "hero_banner")
			Expect(desc.Key).To(Equal("hero_banner"))
			Expect(desc.Name).To(Equal("Hero Banner"))
			Expect(desc.Checksum).NotTo(BeEmpty())

			Expect(env.Record(ctx, sync.Templates, "default_layout").Name).To(Equal("Default Layout"))
		})

		It("should leave an unchanged mirror alone on the next run", func() {
			env.SeedRecord(ctx, sync.Modules, "Teaser", map[string]string{"input": "a", "output": "b"}, past)
			run(sync.StartOptions{Only: []sync.Kind{sync.Modules}})

			report := run(sync.StartOptions{Only: []sync.Kind{sync.Modules}})
			Expect(report.Kinds).To(HaveLen(1))
			Expect(report.Kinds[0].Result.Written).To(BeZero())
			Expect(report.Kinds[0].Result.Unchanged).To(Equal(1))
			Expect(report.Changed()).To(BeFalse())
		})

		It("should not touch store or disk in a dry run", func() {
			env.SeedRecord(ctx, sync.Modules, "Teaser", map[string]string{"input": "a"}, past)

			report := run(sync.StartOptions{DryRun: true})
			Expect(report.DryRun).To(BeTrue())
			Expect(report.Kinds[0].Result.Written).To(Equal(1))

			_, err := env.FS.Stat("modules/teaser")
			Expect(err).To(HaveOccurred())
			records, err := env.Store.ListAll(ctx, sync.Modules.Record)
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].Key).To(BeEmpty())
		})
	})

	Context("Disk to store", func() {
		It("should update a record from edited files", func() {
			env.SeedRecord(ctx, sync.Modules, "Teaser", map[string]string{"input": "old", "output": "b"}, past)
			run(sync.StartOptions{})

			env.WriteItemFile(sync.Modules, "teaser", "input.php", "new")

			report := run(sync.StartOptions{Only: []sync.Kind{sync.Modules}})
			Expect(report.Failed()).To(BeFalse())
			Expect(report.Kinds[0].Result.Updated).To(Equal(1))

			rec := env.Record(ctx, sync.Modules, "teaser")
			Expect(rec.Field("input")).To(Equal("new"))
			Expect(rec.UpdatedAt.After(past)).To(BeTrue())
		})

		It("should insert items that only exist on disk", func() {
			env.CreateItem(sync.Templates, "landing",
				&metadata.Descriptor{Key: "landing", Name: "Landing Page"},
				map[string]string{"template.php": "<main></main>"})

			report := run(sync.StartOptions{Only: []sync.Kind{sync.Templates}})
			Expect(report.Failed()).To(BeFalse())
			Expect(report.Kinds[0].Result.Created).To(Equal(1))

			rec := env.Record(ctx, sync.Templates, "landing")
			Expect(rec.Name).To(Equal("Landing Page"))
			Expect(rec.Field("content")).To(Equal("<main></main>"))
		})
	})

	Context("Conflicts", func() {
		It("should report edits on both sides and overwrite neither", func() {
			id := env.SeedRecord(ctx, sync.Modules, "Teaser", map[string]string{"input": "base", "output": "b"}, past)
			run(sync.StartOptions{})

			env.WriteItemFile(sync.Modules, "teaser", "input.php", "disk edit")
			rec := env.Record(ctx, sync.Modules, "teaser")
			Expect(rec.ID).To(Equal(id))
			rec.Fields["input"] = "store edit"
			rec.UpdatedAt = time.Now().UTC().Truncate(time.Second)
			Expect(env.Store.Update(ctx, sync.Modules.Record, rec)).To(Succeed())

			report := run(sync.StartOptions{Only: []sync.Kind{sync.Modules}})
			Expect(report.Failed()).To(BeTrue())
			Expect(report.Kinds[0].Result.Conflicts).To(HaveLen(1))
			Expect(sync.Class(report.Kinds[0].Result.Conflicts[0])).To(MatchError(sync.ErrConflict))

			Expect(env.ReadItemFile(sync.Modules, "teaser", "input.php")).To(Equal("disk edit"))
			Expect(env.Record(ctx, sync.Modules, "teaser").Field("input")).To(Equal("store edit"))
		})
	})

	Context("File naming", func() {
		It("should convert content files to descriptive names and back", func() {
			env.SeedRecord(ctx, sync.Modules, "Teaser", map[string]string{"input": "a", "output": "b"}, past)
			run(sync.StartOptions{})

			res, err := env.Manager.RenameAllFiles(ctx, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Renamed).To(Equal(2))
			Expect(env.ReadItemFile(sync.Modules, "teaser", "teaser input.php")).To(Equal("a"))

			res, err = env.Manager.RenameAllFiles(ctx, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Renamed).To(Equal(2))
			Expect(env.ReadItemFile(sync.Modules, "teaser", "input.php")).To(Equal("a"))
		})
	})

	Context("Descriptive filenames", func() {
		BeforeEach(func() {
			env.Close()
			env = helpers.NewEnv(ctx, tempDir, func(cfg *config.Config) {
				cfg.Options.DescriptiveFilenames = true
			})
		})

		It("should write and read files named after the key", func() {
			env.SeedRecord(ctx, sync.Templates, "Landing", map[string]string{"content": "v1"}, past)
			run(sync.StartOptions{})
			Expect(env.ReadItemFile(sync.Templates, "landing", "landing template.php")).To(Equal("v1"))

			env.WriteItemFile(sync.Templates, "landing", "landing template.php", "v2")
			report := run(sync.StartOptions{Only: []sync.Kind{sync.Templates}})
			Expect(report.Kinds[0].Result.Updated).To(Equal(1))
			Expect(env.Record(ctx, sync.Templates, "landing").Field("content")).To(Equal("v2"))
		})
	})
})
