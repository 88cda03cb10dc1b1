package types

type OrderAction string

const (
	ActionNew    OrderAction = "new"
	ActionExtend OrderAction = "extend"
)

type TxStatus string

const (
	TxPending TxStatus = "pending"
	TxPaid    TxStatus = "paid"
)

const (
	MethodYooKassa  string = "YooKassa"
	MethodCryptoBot string = "CryptoBot"
	MethodHeleket   string = "Heleket"
	MethodPlatega   string = "Platega"
	MethodTON       string = "TON"
)
