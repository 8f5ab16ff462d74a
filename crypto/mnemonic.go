package crypto

// Mnemonic language tags accepted by Mnemonic implementations.
const (
	LanguageEnglish            = "english"
	LanguageFrench             = "french"
	LanguageSpanish            = "spanish"
	LanguageItalian            = "italian"
	LanguageJapanese           = "japanese"
	LanguageKorean             = "korean"
	LanguageChineseSimplified  = "chinese_simplified"
	LanguageChineseTraditional = "chinese_traditional"
)

// Mnemonic generates and validates BIP39 recovery phrases by language
// tag. Word lists are deliberately outside this SDK; wallets supply an
// implementation and feed the resulting sentence to BIP39Seed.
type Mnemonic interface {
	// Generate produces a fresh mnemonic sentence in the given language.
	Generate(language string) (string, error)

	// IsValid checks a sentence against the language's word list and
	// checksum.
	IsValid(language, mnemonic string) bool
}
