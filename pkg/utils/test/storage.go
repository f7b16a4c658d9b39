package testutils

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/storage"
)

// NewTestDocument builds a pending plain-text document uploaded at the
// given minute past a fixed base time.
func NewTestDocument(id, owner string, minute int) *storage.Document {
	return &storage.Document{
		ID:          id,
		OwnerID:     owner,
		FileName:    id + ".txt",
		MimeType:    "text/plain",
		UploadedAt:  time.Date(2026, 3, 1, 12, minute, 0, 0, time.UTC),
		StorageKey:  "user-" + owner + "/" + id + ".txt",
		TextContent: "text of " + id,
		Status:      storage.StatusPending,
	}
}

// DriverContract registers the behavior every storage.Driver must satisfy.
// newDriver is called before each spec and must return an empty store.
func DriverContract(newDriver func() storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
		DeferCleanup(func() {
			Expect(driver.Close()).To(Succeed())
		})
	})

	It("stores and retrieves a document", func() {
		doc := NewTestDocument("d1", "alice", 0)
		Expect(driver.Put(ctx, doc)).To(Succeed())

		got, err := driver.Get(ctx, "d1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(doc))
	})

	It("returns NotFoundError for unknown documents", func() {
		_, err := driver.Get(ctx, "missing")

		var notFound storage.NotFoundError
		Expect(errors.As(err, &notFound)).To(BeTrue())
		Expect(notFound.ID).To(Equal("missing"))
		Expect(errors.Is(err, errs.ErrNotFound)).To(BeTrue())
	})

	It("replaces a document with the same ID", func() {
		doc := NewTestDocument("d1", "alice", 0)
		Expect(driver.Put(ctx, doc)).To(Succeed())

		doc.FileName = "renamed.txt"
		Expect(driver.Put(ctx, doc)).To(Succeed())

		got, err := driver.Get(ctx, "d1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.FileName).To(Equal("renamed.txt"))
	})

	It("lists an owner's documents newest first", func() {
		Expect(driver.Put(ctx, NewTestDocument("old", "alice", 1))).To(Succeed())
		Expect(driver.Put(ctx, NewTestDocument("new", "alice", 5))).To(Succeed())
		Expect(driver.Put(ctx, NewTestDocument("other", "bob", 9))).To(Succeed())

		docs, err := driver.ListByOwner(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(HaveLen(2))
		Expect(docs[0].ID).To(Equal("new"))
		Expect(docs[1].ID).To(Equal("old"))
	})

	It("lists nothing for an owner without documents", func() {
		docs, err := driver.ListByOwner(ctx, "nobody")
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(BeEmpty())
	})

	It("updates status and failed chunks", func() {
		Expect(driver.Put(ctx, NewTestDocument("d1", "alice", 0))).To(Succeed())

		Expect(driver.UpdateStatus(ctx, "d1", storage.StatusPartial, []int{1, 4})).To(Succeed())
		got, err := driver.Get(ctx, "d1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(storage.StatusPartial))
		Expect(got.FailedChunks).To(Equal([]int{1, 4}))

		Expect(driver.UpdateStatus(ctx, "d1", storage.StatusReady, nil)).To(Succeed())
		got, err = driver.Get(ctx, "d1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(storage.StatusReady))
		Expect(got.FailedChunks).To(BeEmpty())
	})

	It("reports status updates of unknown documents as not found", func() {
		err := driver.UpdateStatus(ctx, "missing", storage.StatusReady, nil)
		Expect(errors.Is(err, errs.ErrNotFound)).To(BeTrue())
	})

	It("deletes documents", func() {
		Expect(driver.Put(ctx, NewTestDocument("d1", "alice", 0))).To(Succeed())
		Expect(driver.Delete(ctx, "d1")).To(Succeed())

		_, err := driver.Get(ctx, "d1")
		Expect(errors.Is(err, errs.ErrNotFound)).To(BeTrue())

		err = driver.Delete(ctx, "d1")
		Expect(errors.Is(err, errs.ErrNotFound)).To(BeTrue())
	})
}
