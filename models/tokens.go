package models

// Token is a catalog entry customers can pick without typing a contract.
type Token struct {
	Symbol          string
	Name            string
	ContractAddress string
}

// CustomSymbol is assigned when a customer supplies a raw contract address
// that is not in the catalog.
const CustomSymbol = "CUSTOM"

// KnownTokens is the fixed catalog offered in the token selection menu.
var KnownTokens = []Token{
	{Symbol: "XTM", Name: "XTM", ContractAddress: "0x96e6044d0e79a6bd9d065ae2ee6246e76eb9d4ab"},
	{Symbol: "USDT", Name: "Tether USD", ContractAddress: "0xdac17f958d2ee523a2206206994597c13d831ec7"},
	{Symbol: "PEPE", Name: "Pepe", ContractAddress: "0x6982508145454ce325ddbe47a25d4ec3d2311933"},
	{Symbol: "SHIB", Name: "Shiba Inu", ContractAddress: "0x95ad61b0a150d79219dcf64e1e6cc01f0b64c4ce"},
	{Symbol: "LINK", Name: "Chainlink", ContractAddress: "0x514910771af9ca656af840dff83e8264ecf986ca"},
}

// FindToken looks a catalog entry up by its symbol, case-sensitively.
func FindToken(symbol string) (Token, bool) {
	for _, t := range KnownTokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return Token{}, false
}
