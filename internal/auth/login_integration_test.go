// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

//go:build integration

package auth_test

import (
	"context"
	"errors"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tellerline/tellerline/internal/auth"
	"github.com/tellerline/tellerline/internal/task"
)

var _ = Describe("Login with the default policy", func() {
	var (
		executor *task.Executor
		tracker  *auth.LockoutTracker
		svc      *auth.Service
		ctx      context.Context
	)

	login := func(email, password string) (*auth.Session, error, time.Duration) {
		start := time.Now()
		f := svc.LoginAsync(ctx, email, password)
		Eventually(f.Done()).WithTimeout(5 * time.Second).Should(BeClosed())
		session, err := f.Await(ctx)
		return session, err, time.Since(start)
	}

	BeforeEach(func() {
		ctx = context.Background()
		logger := slog.New(slog.DiscardHandler)

		hasher, err := auth.NewPasswordHasher(auth.AlgorithmSHA256)
		Expect(err).NotTo(HaveOccurred())
		store, err := auth.NewCredentialStore(hasher, auth.DefaultFixture())
		Expect(err).NotTo(HaveOccurred())

		executor = task.NewExecutor(task.Config{Logger: logger})
		tracker = auth.NewLockoutTracker(auth.LockoutConfig{})
		svc, err = auth.NewService(auth.Config{
			Store:    store,
			Tracker:  tracker,
			Executor: executor,
			Logger:   logger,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		svc.Close()
		executor.Shutdown()
	})

	It("opens a session for the fixture user within the verification window", func() {
		session, err, elapsed := login("user@bank.example", "123456")

		Expect(err).NotTo(HaveOccurred())
		Expect(session.Identity).To(Equal(auth.Identity("user@bank.example")))
		Expect(elapsed).To(BeNumerically(">=", auth.DefaultVerificationLatency))
		Expect(elapsed).To(BeNumerically("<", auth.DefaultVerificationLatency+time.Second))
		Expect(tracker.Failures(session.Identity)).To(BeZero())

		current, ok := svc.CurrentSession()
		Expect(ok).To(BeTrue())
		Expect(current).To(BeIdenticalTo(session))
	})

	It("locks the account after three wrong passwords", func() {
		for i := range 3 {
			_, err, _ := login("user@bank.example", "wrong-password")
			var authErr *auth.AuthenticationError
			Expect(errors.As(err, &authErr)).To(BeTrue())
			Expect(authErr.RemainingAttempts).To(Equal(2 - i))
		}

		start := time.Now()
		f := svc.LoginAsync(ctx, "user@bank.example", "123456")
		Expect(f.Resolved()).To(BeTrue())
		Expect(time.Since(start)).To(BeNumerically("<", 100*time.Millisecond))

		_, err, _ := f.Result()
		var lockErr *auth.LockoutError
		Expect(errors.As(err, &lockErr)).To(BeTrue())
		Expect(lockErr.RemainingSeconds).To(BeNumerically("~", 300, 1))
		Expect(auth.UserMessage(err)).To(ContainSubstring("Account locked"))
	})

	It("drains in-flight logins when the executor shuts down", func() {
		futures := make([]*task.Future[*auth.Session], 0, 5)
		for range 5 {
			futures = append(futures, svc.LoginAsync(ctx, "user@bank.example", "123456"))
		}

		Expect(executor.Shutdown).NotTo(Panic())
		for _, f := range futures {
			Eventually(f.Done()).Should(BeClosed())
			_, err, ok := f.Result()
			Expect(ok).To(BeTrue())
			Expect(err).NotTo(HaveOccurred())
		}
	})
})
