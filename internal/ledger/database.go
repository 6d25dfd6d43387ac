package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	customersBucket      = "customers"
	suppliersBucket      = "suppliers"
	expensesBucket       = "expenses"
	incomesBucket        = "incomes"
	receiptNumbersBucket = "income_receipt_numbers"
)

// DB defines the interface for database operations
type DB interface {
	SaveCustomer(customer *Customer) error
	GetCustomer(id string) (*Customer, error)
	ListCustomers() ([]*Customer, error)
	DeleteCustomer(id string) error

	SaveSupplier(supplier *Supplier) error
	GetSupplier(id string) (*Supplier, error)
	ListSuppliers() ([]*Supplier, error)
	DeleteSupplier(id string) error

	SaveExpense(expense *Expense) error
	GetExpense(id string) (*Expense, error)
	ListExpenses() ([]*Expense, error)
	DeleteExpense(id string) error
	// DeleteAllExpenses removes every expense and returns how many there were
	DeleteAllExpenses() (int, error)

	// SaveIncome fails with ErrConflict when another income has the same
	// receipt number
	SaveIncome(income *Income) error
	GetIncome(id string) (*Income, error)
	ListIncomes() ([]*Income, error)
	DeleteIncome(id string) error
	DeleteAllIncomes() (int, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{customersBucket, suppliersBucket, expensesBucket, incomesBucket, receiptNumbersBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func put(tx *bbolt.Tx, bucket, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", bucket, err)
	}
	return tx.Bucket([]byte(bucket)).Put([]byte(id), data)
}

func get[T any](b *BoltDB, bucket, id string) (*T, error) {
	var v *T
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucket, id, ErrNotFound)
		}
		return json.Unmarshal(data, &v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func list[T any](b *BoltDB, bucket string) ([]*T, error) {
	out := make([]*T, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).ForEach(func(k, v []byte) error {
			var item T
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("unmarshaling %s %s: %w", bucket, k, err)
			}
			out = append(out, &item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BoltDB) save(bucket, id string, v any) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucket, id, v)
	})
}

func (b *BoltDB) delete(bucket, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt.Get([]byte(id)) == nil {
			return fmt.Errorf("%s %s: %w", bucket, id, ErrNotFound)
		}
		return bkt.Delete([]byte(id))
	})
}

// emptyBucket removes every key of a bucket and returns how many there were
func emptyBucket(tx *bbolt.Tx, bucket string) (int, error) {
	n := 0
	if err := tx.Bucket([]byte(bucket)).ForEach(func(k, v []byte) error {
		n++
		return nil
	}); err != nil {
		return 0, err
	}
	if err := tx.DeleteBucket([]byte(bucket)); err != nil {
		return 0, err
	}
	if _, err := tx.CreateBucket([]byte(bucket)); err != nil {
		return 0, err
	}
	return n, nil
}

func (b *BoltDB) SaveCustomer(customer *Customer) error {
	return b.save(customersBucket, customer.ID, customer)
}

func (b *BoltDB) GetCustomer(id string) (*Customer, error) {
	return get[Customer](b, customersBucket, id)
}

func (b *BoltDB) ListCustomers() ([]*Customer, error) {
	return list[Customer](b, customersBucket)
}

func (b *BoltDB) DeleteCustomer(id string) error {
	return b.delete(customersBucket, id)
}

func (b *BoltDB) SaveSupplier(supplier *Supplier) error {
	return b.save(suppliersBucket, supplier.ID, supplier)
}

func (b *BoltDB) GetSupplier(id string) (*Supplier, error) {
	return get[Supplier](b, suppliersBucket, id)
}

func (b *BoltDB) ListSuppliers() ([]*Supplier, error) {
	return list[Supplier](b, suppliersBucket)
}

func (b *BoltDB) DeleteSupplier(id string) error {
	return b.delete(suppliersBucket, id)
}

func (b *BoltDB) SaveExpense(expense *Expense) error {
	return b.save(expensesBucket, expense.ID, expense)
}

func (b *BoltDB) GetExpense(id string) (*Expense, error) {
	return get[Expense](b, expensesBucket, id)
}

func (b *BoltDB) ListExpenses() ([]*Expense, error) {
	return list[Expense](b, expensesBucket)
}

func (b *BoltDB) DeleteExpense(id string) error {
	return b.delete(expensesBucket, id)
}

func (b *BoltDB) DeleteAllExpenses() (int, error) {
	var n int
	err := b.db.Update(func(tx *bbolt.Tx) error {
		var err error
		n, err = emptyBucket(tx, expensesBucket)
		return err
	})
	return n, err
}

// SaveIncome stores the income and keeps the receipt number index in step
func (b *BoltDB) SaveIncome(income *Income) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		numbers := tx.Bucket([]byte(receiptNumbersBucket))
		if owner := numbers.Get([]byte(income.ReceiptNumber)); owner != nil && string(owner) != income.ID {
			return fmt.Errorf("receipt number %s: %w", income.ReceiptNumber, ErrConflict)
		}

		// Drop the index entry of the previous receipt number on update
		if data := tx.Bucket([]byte(incomesBucket)).Get([]byte(income.ID)); data != nil {
			var previous Income
			if err := json.Unmarshal(data, &previous); err != nil {
				return fmt.Errorf("unmarshaling income %s: %w", income.ID, err)
			}
			if previous.ReceiptNumber != income.ReceiptNumber {
				if err := numbers.Delete([]byte(previous.ReceiptNumber)); err != nil {
					return err
				}
			}
		}

		if err := numbers.Put([]byte(income.ReceiptNumber), []byte(income.ID)); err != nil {
			return err
		}
		return put(tx, incomesBucket, income.ID, income)
	})
}

func (b *BoltDB) GetIncome(id string) (*Income, error) {
	return get[Income](b, incomesBucket, id)
}

func (b *BoltDB) ListIncomes() ([]*Income, error) {
	return list[Income](b, incomesBucket)
}

func (b *BoltDB) DeleteIncome(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		incomes := tx.Bucket([]byte(incomesBucket))
		data := incomes.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s %s: %w", incomesBucket, id, ErrNotFound)
		}
		var income Income
		if err := json.Unmarshal(data, &income); err != nil {
			return fmt.Errorf("unmarshaling income %s: %w", id, err)
		}
		if err := tx.Bucket([]byte(receiptNumbersBucket)).Delete([]byte(income.ReceiptNumber)); err != nil {
			return err
		}
		return incomes.Delete([]byte(id))
	})
}

func (b *BoltDB) DeleteAllIncomes() (int, error) {
	var n int
	err := b.db.Update(func(tx *bbolt.Tx) error {
		var err error
		if n, err = emptyBucket(tx, incomesBucket); err != nil {
			return err
		}
		_, err = emptyBucket(tx, receiptNumbersBucket)
		return err
	})
	return n, err
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
