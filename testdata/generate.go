// Command generate produces CSV fixture files for manual testing of the
// reconciliation pipeline. It writes one invoice file and one payment
// file per bank format, seeded with known scenarios:
//
//   - exact matches (same amount, wire reference embedding the invoice
//     reference, same client, close dates)
//   - close-amount matches inside the default tolerance
//   - N:1 groups (one payment covering several invoices)
//   - 1:N groups (several partial payments covering one invoice)
//   - unmatched payments and already paid invoices
//
// Usage:
//
//	go run testdata/generate.go --out-dir testdata/csv --invoices 50 --seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

var clients = []string{
	"Acme Corp",
	"Globex SARL",
	"Wayne Enterprises",
	"Stark Industries",
	"Umbrella SA",
	"Initech GmbH",
	"Soylent Ltd",
	"Hooli SAS",
}

type invoice struct {
	id        string
	reference string
	client    string
	amount    decimal.Decimal
	dueDate   time.Time
	status    string
}

type payment struct {
	id        string
	reference string
	client    string
	amount    decimal.Decimal
	received  time.Time
}

func main() {
	var (
		outDir       = flag.String("out-dir", "testdata/csv", "output directory for generated files")
		invoiceCount = flag.Int("invoices", 40, "number of invoices to generate")
		seed         = flag.Int64("seed", 42, "random seed for reproducible datasets")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	invoices, payments := buildDataset(rng, *invoiceCount)

	if err := writeInvoices(filepath.Join(*outDir, "invoices.csv"), invoices); err != nil {
		log.Fatalf("failed to write invoices: %v", err)
	}
	if err := writeStandardPayments(filepath.Join(*outDir, "payments_standard.csv"), payments); err != nil {
		log.Fatalf("failed to write standard payments: %v", err)
	}
	if err := writeSepaPayments(filepath.Join(*outDir, "payments_sepa.csv"), payments); err != nil {
		log.Fatalf("failed to write SEPA payments: %v", err)
	}
	if err := writeLegacyPayments(filepath.Join(*outDir, "payments_legacy.csv"), payments); err != nil {
		log.Fatalf("failed to write legacy payments: %v", err)
	}

	fmt.Printf("Generated %d invoices and %d payments in %s\n", len(invoices), len(payments), *outDir)
}

// buildDataset produces invoices and payments with a controlled mix of
// matching scenarios. Roughly 50% of invoices get an exact-match
// payment, 15% a close-amount payment, 10% participate in N:1 or 1:N
// groups, 10% stay unpaid, and the rest are already marked paid.
// A handful of stray payments match nothing.
func buildDataset(rng *rand.Rand, invoiceCount int) ([]invoice, []payment) {
	baseDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	invoices := make([]invoice, 0, invoiceCount)
	payments := make([]payment, 0, invoiceCount+8)
	paymentSeq := 1

	nextPaymentID := func() string {
		id := fmt.Sprintf("PAY%04d", paymentSeq)
		paymentSeq++
		return id
	}

	for i := 0; i < invoiceCount; i++ {
		client := clients[rng.Intn(len(clients))]
		amount := decimal.NewFromInt(int64(rng.Intn(490000)+10000)).Div(decimal.NewFromInt(100))
		due := baseDate.AddDate(0, 0, rng.Intn(28))

		inv := invoice{
			id:        fmt.Sprintf("INV%04d", i+1),
			reference: fmt.Sprintf("FAC-2024-%04d", i+1),
			client:    client,
			amount:    amount,
			dueDate:   due,
			status:    "OPEN",
		}

		switch scenario := rng.Intn(100); {
		case scenario < 50:
			// Exact match: wire reference embeds the invoice reference
			payments = append(payments, payment{
				id:        nextPaymentID(),
				reference: fmt.Sprintf("VIR %s", inv.reference),
				client:    client,
				amount:    amount,
				received:  due.AddDate(0, 0, rng.Intn(5)),
			})

		case scenario < 65:
			// Close amount, partial reference only
			offset := decimal.NewFromInt(int64(rng.Intn(400)+1)).Div(decimal.NewFromInt(100))
			payments = append(payments, payment{
				id:        nextPaymentID(),
				reference: inv.reference,
				client:    client,
				amount:    amount.Sub(offset),
				received:  due.AddDate(0, 0, rng.Intn(10)),
			})

		case scenario < 70 && i+2 < invoiceCount:
			// N:1 group: one payment covers this invoice and the next two.
			// The companions are generated here so their amounts are known.
			total := amount
			group := []invoice{inv}
			for j := 1; j <= 2; j++ {
				companionAmount := decimal.NewFromInt(int64(rng.Intn(90000)+10000)).Div(decimal.NewFromInt(100))
				companion := invoice{
					id:        fmt.Sprintf("INV%04d", i+1+j),
					reference: fmt.Sprintf("FAC-2024-%04d", i+1+j),
					client:    client,
					amount:    companionAmount,
					dueDate:   due.AddDate(0, 0, j),
					status:    "OPEN",
				}
				group = append(group, companion)
				total = total.Add(companionAmount)
			}
			invoices = append(invoices, group...)
			i += 2
			payments = append(payments, payment{
				id:        nextPaymentID(),
				reference: fmt.Sprintf("VIR GROUPE %s", client),
				client:    client,
				amount:    total,
				received:  due.AddDate(0, 0, 3),
			})
			continue

		case scenario < 75:
			// 1:N group: two partial payments covering one invoice
			half := amount.Div(decimal.NewFromInt(2)).Round(2)
			payments = append(payments,
				payment{
					id:        nextPaymentID(),
					reference: fmt.Sprintf("ACOMPTE %s", inv.reference),
					client:    client,
					amount:    half,
					received:  due,
				},
				payment{
					id:        nextPaymentID(),
					reference: fmt.Sprintf("SOLDE %s", inv.reference),
					client:    client,
					amount:    amount.Sub(half),
					received:  due.AddDate(0, 0, 7),
				},
			)

		case scenario < 85:
			// Unpaid invoice, no payment generated

		default:
			inv.status = "PAID"
		}

		invoices = append(invoices, inv)
	}

	// Stray payments that match nothing
	for i := 0; i < 5; i++ {
		payments = append(payments, payment{
			id:        nextPaymentID(),
			reference: fmt.Sprintf("CHQ %04d", rng.Intn(10000)),
			client:    fmt.Sprintf("Unknown Payer %d", i+1),
			amount:    decimal.NewFromInt(int64(rng.Intn(50000)+100)).Div(decimal.NewFromInt(100)),
			received:  baseDate.AddDate(0, 0, rng.Intn(30)),
		})
	}

	return invoices, payments
}

func writeCSV(path string, delimiter rune, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = delimiter
	defer writer.Flush()

	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeInvoices(path string, invoices []invoice) error {
	header := []string{"invoice_id", "reference", "client_name", "amount", "due_date", "status"}
	rows := make([][]string, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, []string{
			inv.id,
			inv.reference,
			inv.client,
			inv.amount.StringFixed(2),
			inv.dueDate.Format("2006-01-02"),
			inv.status,
		})
	}
	return writeCSV(path, ',', header, rows)
}

func writeStandardPayments(path string, payments []payment) error {
	header := []string{"payment_id", "reference", "client_name", "amount", "reception_date"}
	rows := make([][]string, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, []string{
			p.id,
			p.reference,
			p.client,
			p.amount.StringFixed(2),
			p.received.Format("2006-01-02"),
		})
	}
	return writeCSV(path, ',', header, rows)
}

func writeSepaPayments(path string, payments []payment) error {
	header := []string{"end_to_end_id", "remittance_info", "debtor_name", "instructed_amount", "settlement_date"}
	rows := make([][]string, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, []string{
			p.id,
			p.reference,
			p.client,
			p.amount.StringFixed(2),
			p.received.Format("2006-01-02"),
		})
	}
	return writeCSV(path, ';', header, rows)
}

func writeLegacyPayments(path string, payments []payment) error {
	header := []string{"transaction_id", "memo", "payer", "transaction_amount", "posting_date"}
	rows := make([][]string, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, []string{
			p.id,
			p.reference,
			p.client,
			p.amount.StringFixed(2),
			p.received.Format("01/02/2006"),
		})
	}
	return writeCSV(path, ',', header, rows)
}
