package walletengine

// JSON shapes of the wallet-engine REST API. The engine wraps every
// payload in a "result" envelope.

type batchTransaction struct {
	ToAddress string `json:"toAddress"`
	Data      string `json:"data"`
	Value     string `json:"value"`
}

type submitBatchRequest struct {
	Transactions []batchTransaction `json:"transactions"`
}

type submitBatchResponse struct {
	Result struct {
		QueueID string `json:"queueId"`
	} `json:"result"`
}

// statusResponse carries both historical hash field names; the engine
// populated "txHash" in older versions and "transactionHash" later,
// and either can lag behind the "mined" status.
type statusResponse struct {
	Result struct {
		QueueID         string `json:"queueId"`
		Status          string `json:"status"`
		TxHash          string `json:"txHash"`
		TransactionHash string `json:"transactionHash"`
		OnchainStatus   string `json:"onchainStatus"`
		ErrorMessage    string `json:"errorMessage"`
	} `json:"result"`
}

type createWalletRequest struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

type createWalletResponse struct {
	Result struct {
		WalletAddress string `json:"walletAddress"`
		Status        string `json:"status"`
	} `json:"result"`
}

// BalanceResult is the engine's token balance answer, passed through
// to callers as-is.
type BalanceResult struct {
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Decimals     string `json:"decimals"`
	Value        string `json:"value"`
	DisplayValue string `json:"displayValue"`
}

type balanceResponse struct {
	Result BalanceResult `json:"result"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
