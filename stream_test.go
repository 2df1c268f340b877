package bigmi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func pagedHistory(total, limit int) (func(context.Context) (TransactionPage, error), NextPageFunc, *int) {
	fetches := 0
	page := func(n int) TransactionPage {
		fetches++
		p := TransactionPage{Total: total, Page: n, ItemsPerPage: limit}
		for i := n * limit; i < total && i < (n+1)*limit; i++ {
			p.Transactions = append(p.Transactions, Transaction{TxID: fmt.Sprintf("tx%d", i)})
		}
		p.HasMore = (n+1)*limit < total
		return p
	}
	first := func(ctx context.Context) (TransactionPage, error) { return page(0), nil }
	next := func(ctx context.Context, prev TransactionPage) (TransactionPage, error) { return page(prev.Page + 1), nil }
	return first, next, &fetches
}

func TestPageStream_DrainsAllPages(t *testing.T) {
	first, next, fetches := pagedHistory(7, 3)
	s, err := NewPageStream(context.Background(), first, next)
	require.NoError(t, err)
	require.Equal(t, 1, *fetches)

	var last TransactionPage
	var all []Transaction
	for {
		p, err := s.Recv(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		last = p
		all = append(all, p.Transactions...)
	}
	require.Len(t, all, 7)
	require.False(t, last.HasMore)
	require.Equal(t, 3, *fetches)
}

func TestPageStream_ExactMultipleOfLimit(t *testing.T) {
	first, next, fetches := pagedHistory(6, 3)
	s, err := NewPageStream(context.Background(), first, next)
	require.NoError(t, err)
	txs, err := DrainPages(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, txs, 6)
	require.Equal(t, 2, *fetches)
}

func TestPageStream_ErrorIsSticky(t *testing.T) {
	boom := errors.New("boom")
	s, err := NewPageStream(context.Background(),
		func(ctx context.Context) (TransactionPage, error) { return TransactionPage{HasMore: true}, nil },
		func(ctx context.Context, prev TransactionPage) (TransactionPage, error) { return TransactionPage{}, boom },
	)
	require.NoError(t, err)
	_, err = s.Recv(context.Background())
	require.NoError(t, err)
	_, err = s.Recv(context.Background())
	require.ErrorIs(t, err, boom)
	_, err = s.Recv(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestPageStream_FirstPageFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewPageStream(context.Background(),
		func(ctx context.Context) (TransactionPage, error) { return TransactionPage{}, boom }, nil)
	require.ErrorIs(t, err, boom)
}

func TestPageStream_Close(t *testing.T) {
	s := StaticPages(TransactionPage{HasMore: true}, TransactionPage{})
	s.Close()
	_, err := s.Recv(context.Background())
	require.ErrorIs(t, err, io.EOF)
}
