package i18n

// ptBRMessages holds the pt-BR message templates.
var ptBRMessages = map[Code]string{
	CodeNotFound:                  "{{.Entity}} {{.ID}} não foi encontrado",
	CodeDuplicateEntity:           "{{.Entity}} {{.ID}} já existe",
	CodeUnauthorized:              "a conta {{.Account}} não é dona de {{.ID}}",
	CodePermissionDenied:          "a chave {{.ID}} não permite {{.Capability}}",
	CodeOfferMismatch:             "a oferta na chave {{.ID}} não corresponde ao pedido",
	CodeInsufficientAuthorization: "o saldo autorizado é menor que o preço da oferta",
	CodeTransferFailed:            "a transferência de liquidação não foi concluída",
	CodeServiceURLEmpty:           "a URL do serviço é obrigatória",
	CodeAccountEmpty:              "uma conta é obrigatória",
	CodeEntityIDEmpty:             "um identificador de entidade é obrigatório",
	CodeSubKeyEmpty:               "uma sub-chave de anotação é obrigatória",
	CodeAmountInvalid:             "o valor {{.Amount}} não é uma quantia válida",
	CodeSignatureInvalid:          "a assinatura não pôde ser recuperada",
	CodeFilterInvalid:             "a expressão de filtro não pôde ser interpretada",
	CodePageTokenInvalid:          "o token de página é inválido ou expirou",
	CodeTradeSelfTarget:           "uma chave não pode ser trocada por ela mesma",
	CodeUnauthenticated:           "um token de acesso válido é obrigatório",
}
