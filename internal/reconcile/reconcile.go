// Package reconcile compares final orders against the processor's
// transaction ledger. It is advisory: discrepancies are logged or
// emailed, never repaired, and a re-run is always safe.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/domain"
	"github.com/ashgoren/registration-service/internal/mailer"
)

// OrdersSource is the slice of the repository the job reads.
type OrdersSource interface {
	GetOrders(ctx context.Context, status domain.OrderStatus, testPartition *bool) ([]domain.Order, error)
}

// TransactionLister is the slice of the processor adapter the job
// reads.
type TransactionLister interface {
	ListTransactions(ctx context.Context, description string) ([]domain.NormalizedTransaction, error)
}

// Result is the three-way diff between stored orders and the ledger.
// ExtraDatabaseOrders is expected transiently (processor reporting
// lag); ExtraTransactions means money with no registration record.
type Result struct {
	MatchingOrders      []string `json:"matchingOrders"`
	ExtraDatabaseOrders []string `json:"extraDatabaseOrders"`
	ExtraTransactions   []string `json:"extraTransactions"`
}

type Job struct {
	orders       OrdersSource
	transactions TransactionLister
	mailer       mailer.Mailer
	description  string
	testMode     bool
	logger       *zap.Logger
}

func NewJob(orders OrdersSource, transactions TransactionLister, m mailer.Mailer,
	description string, testMode bool, logger *zap.Logger) *Job {
	return &Job{
		orders:       orders,
		transactions: transactions,
		mailer:       m,
		description:  description,
		testMode:     testMode,
		logger:       logger,
	}
}

// Run fetches both sides concurrently and diffs them. A fetch failure
// or an empty side short-circuits to a warning and empty sets: a diff
// against nothing is always "everything missing", which tells an
// operator nothing.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	var (
		wg        sync.WaitGroup
		orders    []domain.Order
		txns      []domain.NormalizedTransaction
		ordersErr error
		txnsErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		partition := j.testMode
		orders, ordersErr = j.orders.GetOrders(ctx, domain.OrderStatusFinal, &partition)
	}()
	go func() {
		defer wg.Done()
		txns, txnsErr = j.transactions.ListTransactions(ctx, j.description)
	}()
	wg.Wait()

	if ordersErr != nil {
		j.logger.Warn("reconciliation skipped: order fetch failed", zap.Error(ordersErr))
		return emptyResult(), nil
	}
	if txnsErr != nil {
		j.logger.Warn("reconciliation skipped: transaction fetch failed", zap.Error(txnsErr))
		return emptyResult(), nil
	}

	paymentIDs := reconcilablePaymentIDs(orders)
	txnIDs := make([]string, 0, len(txns))
	for _, t := range txns {
		txnIDs = append(txnIDs, t.ID)
	}

	if len(paymentIDs) == 0 || len(txnIDs) == 0 {
		j.logger.Warn("reconciliation skipped: nothing to compare",
			zap.Int("orders", len(paymentIDs)),
			zap.Int("transactions", len(txnIDs)))
		return emptyResult(), nil
	}

	matching, extraOrders, extraTxns := Diff(paymentIDs, txnIDs)
	result := &Result{
		MatchingOrders:      matching,
		ExtraDatabaseOrders: extraOrders,
		ExtraTransactions:   extraTxns,
	}

	j.logger.Info("reconciliation complete",
		zap.Int("matching", len(matching)),
		zap.Int("extra_database_orders", len(extraOrders)),
		zap.Int("extra_transactions", len(extraTxns)))

	if len(extraOrders) > 0 {
		// Usually processor reporting lag; logged, not alerted.
		j.logger.Warn("orders with no matching transaction",
			zap.Strings("payment_ids", extraOrders))
	}
	if len(extraTxns) > 0 {
		subject := fmt.Sprintf("Reconciliation: %d transaction(s) with no order", len(extraTxns))
		body := fmt.Sprintf(
			"The following processor transactions match %q but have no corresponding order:\n%s",
			j.description, strings.Join(extraTxns, "\n"))
		if err := j.mailer.Send(ctx, subject, body); err != nil {
			j.logger.Error("failed to send reconciliation alert", zap.Error(err))
		}
	}

	return result, nil
}

// reconcilablePaymentIDs keeps final payment ids that a processor
// ledger could contain. Check payments are reconciled by hand and
// excluded; empty or still-pending ids never match anything.
func reconcilablePaymentIDs(orders []domain.Order) []string {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		switch o.PaymentID {
		case "", domain.PaymentIDPending, domain.PaymentIDCheck, domain.PaymentIDWaitlist:
			continue
		}
		ids = append(ids, o.PaymentID)
	}
	return ids
}

// Diff computes the symmetric set comparison of order payment ids and
// transaction ids. Outputs are sorted and deduplicated.
func Diff(orderIDs, txnIDs []string) (matching, extraOrders, extraTxns []string) {
	orderSet := toSet(orderIDs)
	txnSet := toSet(txnIDs)

	for id := range orderSet {
		if txnSet[id] {
			matching = append(matching, id)
		} else {
			extraOrders = append(extraOrders, id)
		}
	}
	for id := range txnSet {
		if !orderSet[id] {
			extraTxns = append(extraTxns, id)
		}
	}

	sort.Strings(matching)
	sort.Strings(extraOrders)
	sort.Strings(extraTxns)
	return matching, extraOrders, extraTxns
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func emptyResult() *Result {
	return &Result{
		MatchingOrders:      []string{},
		ExtraDatabaseOrders: []string{},
		ExtraTransactions:   []string{},
	}
}
