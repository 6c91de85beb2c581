package tokens

import (
	"strings"
)

// Token is an SPL mint as shown to the user. Values are immutable once built.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// Mint addresses
const (
	MintSOL  = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	MintBONK = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	MintJUP  = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
)

const tokenListAssets = "https://raw.githubusercontent.com/solana-labs/token-list/main/assets/mainnet/"

var (
	SOL = Token{
		Address:  MintSOL,
		Symbol:   "SOL",
		Name:     "Solana",
		Decimals: 9,
		LogoURI:  tokenListAssets + MintSOL + "/logo.png",
	}
	USDC = Token{
		Address:  MintUSDC,
		Symbol:   "USDC",
		Name:     "USD Coin",
		Decimals: 6,
		LogoURI:  tokenListAssets + MintUSDC + "/logo.png",
	}
	USDT = Token{
		Address:  MintUSDT,
		Symbol:   "USDT",
		Name:     "Tether USD",
		Decimals: 6,
		LogoURI:  tokenListAssets + MintUSDT + "/logo.png",
	}
	BONK = Token{
		Address:  MintBONK,
		Symbol:   "BONK",
		Name:     "Bonk",
		Decimals: 5,
		LogoURI:  "https://arweave.net/hQiPZOsRZXGXBJd_82PhVdlM_hACsT_q6wqwf5cSY7I",
	}
	JUP = Token{
		Address:  MintJUP,
		Symbol:   "JUP",
		Name:     "Jupiter",
		Decimals: 6,
		LogoURI:  "https://static.jup.ag/jup/icon.png",
	}
)

// Popular returns the curated token list in display order.
func Popular() []Token {
	return []Token{SOL, USDC, USDT, BONK, JUP}
}

// BySymbol looks a popular token up case-insensitively.
func BySymbol(symbol string) (Token, bool) {
	symbol = strings.TrimSpace(symbol)
	for _, t := range Popular() {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return Token{}, false
}

// ByAddress looks a popular token up by mint.
func ByAddress(mint string) (Token, bool) {
	for _, t := range Popular() {
		if t.Address == mint {
			return t, true
		}
	}
	return Token{}, false
}

// Resolve accepts either a popular symbol or a mint address.
func Resolve(symbolOrMint string) (Token, bool) {
	if t, ok := BySymbol(symbolOrMint); ok {
		return t, true
	}
	return ByAddress(strings.TrimSpace(symbolOrMint))
}

// Matches reports whether query is a case-insensitive substring of the symbol or name.
func (t Token) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return strings.Contains(strings.ToLower(t.Symbol), q) || strings.Contains(strings.ToLower(t.Name), q)
}
