package repository

import "context"

// Repositories groups the repositories bound to one connection or
// transaction.
type Repositories struct {
	Rides    RideRepository
	Drivers  DriverRepository
	Tariffs  TariffRepository
	Wallets  WalletRepository
	Retraits RetraitRepository
}

// TxManager runs a unit of work inside a database transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}
