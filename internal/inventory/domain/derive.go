package domain

// DeriveSystemCount returns the expected remaining stock of a book: its
// initial stock minus everything delivered through approved transactions.
// Transactions in any other status are ignored. The result never goes below
// zero, even when the input is oversold.
func DeriveSystemCount(book Book, txs []Transaction) int {
	return ClampStock(book.InitialStock - DeliveredQuantity(book.ID, txs))
}

// DeliveredQuantity sums the approved line items for bookID
func DeliveredQuantity(bookID uint, txs []Transaction) int {
	delivered := 0
	for _, tx := range txs {
		if tx.Status != TransactionApproved {
			continue
		}
		for _, item := range tx.Items {
			if item.BookID == bookID {
				delivered += item.Quantity
			}
		}
	}
	return delivered
}

// ClampStock floors a stock figure at zero
func ClampStock(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
