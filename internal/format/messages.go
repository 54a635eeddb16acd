// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package format

// Fixed replies sent to customers.
const (
	MsgReset             = "Ok, finalizei a busca. Diga o que gostaria de pesquisar agora."
	MsgNoHistory         = "Não há histórico de busca para voltar. Por favor, faça uma busca primeiro."
	MsgNothingToShow     = "Ainda não temos uma lista de produtos para mostrar. Por favor, faça uma busca primeiro."
	MsgSearchCancelled   = "Ok, busca cancelada. Posso ajudar com mais alguma coisa?"
	MsgHelp              = "Olá! Sou um assistente de busca de produtos. Por favor, me diga qual produto você gostaria de pesquisar e eu farei o meu melhor para ajudar!"
	MsgUnsupportedAction = "Desculpe, não consegui processar essa solicitação. Poderia perguntar sobre um produto?"
	MsgDecodeFailure     = "Tive dificuldade para entender sua pergunta. Pode repetir com outras palavras?"
	MsgClassifierFailure = "Desculpe, não consegui entender sua intenção no momento. Poderia repetir?"
	MsgFallback          = "Ops, tive um probleminha para te responder. Tente novamente mais tarde!"
	MsgMoreSearch        = "Posso ajudar com mais alguma busca?"

	msgGreeting = "%s! Em que posso te ajudar hoje? 😉\n\n" +
		"Você pode pesquisar por produtos e eu mostrarei o estoque e o valor de cada item. " +
		"Se houver muitos itens, pedirei para você ser mais específico(a) para refinar a busca.\n\n" +
		"Para sair ou começar uma nova busca, é só digitar 'cancelar'."

	msgConfirm     = "Você quer buscar por %q? Confirme com 'Sim' ou 'Não'."
	msgNarrow      = "Encontrei %d produtos para %q. Por favor, seja mais específico na sua busca (ex: \"inox profissional\")."
	msgNoMatch     = "Não encontrei nenhum produto que corresponda a %q na sua busca. Tente outro termo, digite 'voltar' para reverter ou 'cancelar' para sair."
	msgRefined     = "✅ Busquei por %q e encontrei %d produtos:"
	msgDirect      = "🔎 Encontrei os seguintes produtos para %q:"
	msgFull        = "🔎 Aqui está a lista completa dos %d produtos encontrados:"
	msgFirst       = "✅ Certo! Mostrando os primeiros %d de %d do seu pedido:"
	msgBack        = "✅ Voltei para a lista anterior com %d produtos."
	msgHidden      = "...e mais %d resultados. Para ver a lista completa, digite 'todos'."
	msgStockAbsent = "Não disponível (entre em contato para mais detalhes)"

	footerRefine  = "Para refinar, me diga mais um termo."
	footerBack    = "Para voltar à lista anterior, digite 'voltar'."
	footerCancel  = "Para sair, digite 'cancelar'."
	footerConfirm = "Responda 'Sim' para buscar ou 'Não' para cancelar."
)
