// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package coordinator_test

import (
	"context"
	"log"

	"github.com/innovationmech/checkout/pkg/checkout"
	"github.com/innovationmech/checkout/pkg/checkout/config"
	"github.com/innovationmech/checkout/pkg/checkout/coordinator"
	"github.com/innovationmech/checkout/pkg/checkout/docstore"
	"github.com/innovationmech/checkout/pkg/checkout/network"
	"github.com/innovationmech/checkout/pkg/checkout/session"
)

// Example wires the coordinator the way an application would: configuration,
// a dial-based connectivity probe, durable session persistence, and a
// listener feeding the UI.
func Example() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal(err)
	}

	sessions, err := session.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatal(err)
	}
	defer sessions.Close()

	monitor := network.NewMonitor(network.DialProbe(cfg.Network.ProbeAddress, cfg.ProbeTimeout()))
	orders := docstore.NewMemoryStore()

	coord := coordinator.New(sessions, orders, monitor,
		coordinator.WithRetryConfig(cfg.RetrySettings()),
		coordinator.WithListener(func(event *checkout.Event) {
			log.Printf("checkout event: %s", event.Type)
		}),
	)

	ctx := context.Background()

	// Resolve anything a previous run left behind before starting new work.
	if _, err := coord.Recover(ctx); err != nil {
		log.Printf("recovery finished with errors: %v", err)
	}

	sess, err := coord.Begin(ctx, "user-1", &checkout.CartSnapshot{
		Currency: "USD",
		Items:    []checkout.CartItem{{ProductID: "p1", Name: "Widget", UnitPrice: 1500, Quantity: 2}},
	})
	if err != nil {
		log.Fatal(err)
	}

	outcome, err := coord.Commit(ctx, sess.ID)
	if err != nil {
		// The outcome carries the classified failure and the preserved cart;
		// the session is waiting in the store for Retry or Cancel.
		log.Printf("checkout failed: %v", err)
		return
	}
	log.Printf("order %s created", outcome.Order.OrderID)
}
