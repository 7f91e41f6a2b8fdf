// Package storagetest is a behaviour suite every storage.Storage
// implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/aanand-mishra/alunos-api/internal/storage"
	"github.com/aanand-mishra/alunos-api/internal/types"
)

// Run exercises store against the document store contract. newStore
// must return an empty store; it is called once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	t.Helper()
	ctx := context.Background()
	const coll = "alunos"

	ana := types.Document{"id": "111", "name": "Ana", "status": "ativo"}

	t.Run("GetMissing", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		_, err := s.Get(ctx, coll, "404")
		g.Expect(err).To(MatchError(storage.ErrNotFound))
	})

	t.Run("SetThenGet", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		g.Expect(s.Set(ctx, coll, "111", ana)).To(Succeed())

		doc, err := s.Get(ctx, coll, "111")
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(doc).To(Equal(ana))
	})

	t.Run("SetReplaces", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		g.Expect(s.Set(ctx, coll, "111", types.Document{"id": "111", "extra": "x"})).To(Succeed())
		g.Expect(s.Set(ctx, coll, "111", ana)).To(Succeed())

		doc, err := s.Get(ctx, coll, "111")
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(doc).To(Equal(ana))
	})

	t.Run("UpdateMerges", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		g.Expect(s.Set(ctx, coll, "111", ana)).To(Succeed())
		g.Expect(s.Update(ctx, coll, "111", types.Document{
			"status": "inativo",
			"turma":  "3A",
		})).To(Succeed())

		doc, err := s.Get(ctx, coll, "111")
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(doc).To(Equal(types.Document{
			"id": "111", "name": "Ana", "status": "inativo", "turma": "3A",
		}))
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		err := s.Update(ctx, coll, "404", types.Document{"status": "x"})
		g.Expect(err).To(MatchError(storage.ErrNotFound))

		_, err = s.Get(ctx, coll, "404")
		g.Expect(err).To(MatchError(storage.ErrNotFound))
	})

	t.Run("UpdateEmpty", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		g.Expect(s.Set(ctx, coll, "111", ana)).To(Succeed())
		g.Expect(s.Update(ctx, coll, "111", types.Document{})).To(Succeed())

		doc, err := s.Get(ctx, coll, "111")
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(doc).To(Equal(ana))
	})

	t.Run("Delete", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		g.Expect(s.Set(ctx, coll, "111", ana)).To(Succeed())
		g.Expect(s.Delete(ctx, coll, "111")).To(Succeed())

		_, err := s.Get(ctx, coll, "111")
		g.Expect(err).To(MatchError(storage.ErrNotFound))

		g.Expect(s.Delete(ctx, coll, "111")).To(Succeed(), "deleting twice is not an error")
	})

	t.Run("ListEmpty", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		docs, err := s.List(ctx, coll)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(docs).NotTo(BeNil())
		g.Expect(docs).To(BeEmpty())
	})

	t.Run("ListIsolatesCollections", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		bia := types.Document{"id": "222", "name": "Bia", "status": "ativo"}
		g.Expect(s.Set(ctx, coll, "111", ana)).To(Succeed())
		g.Expect(s.Set(ctx, coll, "222", bia)).To(Succeed())
		g.Expect(s.Set(ctx, "professores", "333", types.Document{"id": "333"})).To(Succeed())

		docs, err := s.List(ctx, coll)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(docs).To(ConsistOf(ana, bia))
	})

	t.Run("EmptyKey", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		_, err := s.Get(ctx, coll, "")
		g.Expect(err).To(MatchError(storage.ErrInvalidKey))
		g.Expect(s.Set(ctx, coll, "", ana)).To(MatchError(storage.ErrInvalidKey))
		g.Expect(s.Update(ctx, coll, "", ana)).To(MatchError(storage.ErrInvalidKey))
		g.Expect(s.Delete(ctx, coll, "")).To(MatchError(storage.ErrInvalidKey))
	})

	t.Run("InvalidFieldNames", func(t *testing.T) {
		for _, name := range []string{"", "_id", "tutor.nome", "$set"} {
			t.Run(name, func(t *testing.T) {
				g := NewWithT(t)
				s := newStore(t)
				g.Expect(s.Set(ctx, coll, "111", ana)).To(Succeed())

				bad := types.Document{name: "x"}
				g.Expect(s.Set(ctx, coll, "222", bad)).To(MatchError(storage.ErrInvalidField))
				g.Expect(s.Update(ctx, coll, "111", bad)).To(MatchError(storage.ErrInvalidField))

				doc, err := s.Get(ctx, coll, "111")
				g.Expect(err).NotTo(HaveOccurred())
				g.Expect(doc).To(Equal(ana), "a rejected update changes nothing")
			})
		}
	})

	t.Run("ConcurrentUpdates", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)
		g.Expect(s.Set(ctx, coll, "111", ana)).To(Succeed())

		const writers = 20
		errs := make([]error, writers)
		var wg sync.WaitGroup
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = s.Update(ctx, coll, "111", types.Document{fmt.Sprintf("f%d", i): "x"})
			}()
		}
		wg.Wait()

		for i, err := range errs {
			g.Expect(err).NotTo(HaveOccurred(), "writer %d", i)
		}

		doc, err := s.Get(ctx, coll, "111")
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(doc).To(HaveLen(len(ana)+writers), "no merge is lost")
	})
}
