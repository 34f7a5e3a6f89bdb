package utils

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/operations"
	"github.com/stellar/go/txnbuild"
)

var (
	ErrInvalidHash         = errors.New("reference is not a transaction hash")
	ErrTransactionNotFound = errors.New("transaction not found on the network")
	ErrTransactionFailed   = errors.New("transaction did not succeed")
	ErrWrongNetwork        = errors.New("transaction was not signed for the configured network")
	ErrAmountMismatch      = errors.New("transaction has no payment of the recorded amount")
)

// maxOperations is the most operations a Stellar transaction can carry.
const maxOperations = 100

// HorizonAPI is the subset of the Horizon client used to verify payments.
type HorizonAPI interface {
	TransactionDetail(txHash string) (hProtocol.Transaction, error)
	Operations(request horizonclient.OperationRequest) (operations.OperationsPage, error)
}

// StellarVerifier checks that a payment reference names a successful
// transaction on the configured Stellar network that pays the recorded amount,
// to the receiving account when one is configured.
type StellarVerifier struct {
	client            HorizonAPI
	networkPassphrase string
	receivingAccount  string
}

func NewStellarVerifier(horizonURL, networkPassphrase, receivingAccount string) *StellarVerifier {
	return &StellarVerifier{
		client:            &horizonclient.Client{HorizonURL: horizonURL},
		networkPassphrase: networkPassphrase,
		receivingAccount:  receivingAccount,
	}
}

func (s *StellarVerifier) VerifyPayment(ctx context.Context, reference string, amount decimal.Decimal) error {
	hash := strings.ToLower(strings.TrimSpace(reference))
	if b, err := hex.DecodeString(hash); err != nil || len(b) != 32 {
		return fmt.Errorf("%w: %q", ErrInvalidHash, reference)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.client.TransactionDetail(hash)
	if err != nil {
		var herr *horizonclient.Error
		if errors.As(err, &herr) && herr.Problem.Status == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrTransactionNotFound, hash)
		}
		return fmt.Errorf("failed to load transaction %s: %w", hash, err)
	}
	if !tx.Successful {
		return fmt.Errorf("%w: %s", ErrTransactionFailed, hash)
	}

	networkHash, err := envelopeHash(tx.EnvelopeXdr, s.networkPassphrase)
	if err != nil {
		return fmt.Errorf("failed to decode envelope of %s: %w", hash, err)
	}
	if networkHash != hash {
		return fmt.Errorf("%w: %s", ErrWrongNetwork, hash)
	}

	page, err := s.client.Operations(horizonclient.OperationRequest{ForTransaction: hash, Limit: maxOperations})
	if err != nil {
		return fmt.Errorf("failed to load operations of %s: %w", hash, err)
	}
	for _, record := range page.Embedded.Records {
		if s.matches(record, amount) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s for %s", ErrAmountMismatch, hash, amount.StringFixed(2))
}

// matches reports whether op is a payment of amount to the receiving account.
func (s *StellarVerifier) matches(op operations.Operation, amount decimal.Decimal) bool {
	var payment operations.Payment
	switch p := op.(type) {
	case operations.Payment:
		payment = p
	case *operations.Payment:
		payment = *p
	default:
		return false
	}
	if s.receivingAccount != "" && payment.To != s.receivingAccount {
		return false
	}
	paid, err := decimal.NewFromString(payment.Amount)
	return err == nil && paid.Equal(amount)
}

// envelopeHash recomputes the transaction hash for the given network passphrase.
func envelopeHash(envelopeXDR, networkPassphrase string) (string, error) {
	generic, err := txnbuild.TransactionFromXDR(envelopeXDR)
	if err != nil {
		return "", err
	}
	if tx, ok := generic.Transaction(); ok {
		return tx.HashHex(networkPassphrase)
	}
	if feeBump, ok := generic.FeeBump(); ok {
		return feeBump.HashHex(networkPassphrase)
	}
	return "", errors.New("unsupported envelope type")
}
