package flow

import (
	"fmt"

	"github.com/funnelworks/leadpipe/internal/messaging"
	"github.com/funnelworks/leadpipe/internal/models"
)

// Scripted Portuguese copy for every deterministic step of the funnel. The
// option IDs are the intent codes the mapper recognizes, so a tapped row and
// a typed phrase converge on the same handler.

// feedbackChoiceList opens the post-seminar conversation.
func feedbackChoiceList(name string) messaging.ChoiceList {
	greeting := "Oi! Tudo bem?"
	if name != "" {
		greeting = fmt.Sprintf("Oi, %s! Tudo bem?", name)
	}
	return messaging.ChoiceList{
		Title:        "Pós-seminário",
		Body:         greeting + " Aqui é da equipe do seminário. Adoraríamos saber: o que você achou do evento?",
		ButtonText:   "Responder",
		SectionTitle: "Sua avaliação",
		Options: []messaging.ChoiceOption{
			{ID: string(models.IntentFeedbackPositive), Label: "Gostei muito!"},
			{ID: string(models.IntentFeedbackGood), Label: "Gostei"},
			{ID: string(models.IntentFeedbackNeutral), Label: "Foi ok"},
			{ID: string(models.IntentFeedbackNegative), Label: "Não gostei"},
		},
	}
}

// interestChoiceList follows non-negative feedback with the discount offer.
func interestChoiceList() messaging.ChoiceList {
	return messaging.ChoiceList{
		Title:        "Condição especial",
		Body:         "Que bom que você gostou! 🎉 Para quem participou do seminário temos uma condição especial: 5% de desconto na pós-graduação. Você teria interesse?",
		ButtonText:   "Responder",
		SectionTitle: "Seu interesse",
		Options: []messaging.ChoiceOption{
			{ID: string(models.IntentInterestHigh), Label: "Tenho muito interesse"},
			{ID: string(models.IntentInterestMedium), Label: "Tenho interesse"},
			{ID: string(models.IntentInterestFuture), Label: "Talvez futuramente"},
			{ID: string(models.IntentNoInterest), Label: "Não tenho interesse"},
		},
	}
}

// meetingChoiceList proposes a short call to a qualified lead.
func meetingChoiceList() messaging.ChoiceList {
	return messaging.ChoiceList{
		Title:        "Vamos conversar?",
		Body:         "Perfeito! Podemos agendar uma conversa rápida de 15 minutos para eu te explicar tudo?",
		ButtonText:   "Responder",
		SectionTitle: "Como prefere?",
		Options: []messaging.ChoiceOption{
			{ID: string(models.IntentAcceptMeeting), Label: "Sim, quero uma reunião"},
			{ID: string(models.IntentPreferChannel), Label: "Prefiro falar por WhatsApp"},
			{ID: string(models.IntentPreferEmail), Label: "Prefiro e-mail"},
			{ID: string(models.IntentNoTime), Label: "Estou sem tempo agora"},
		},
	}
}

// slotChoiceList offers the snapshot slots; row N carries slot_N.
func slotChoiceList(slots []models.CandidateSlot) messaging.ChoiceList {
	list := messaging.ChoiceList{
		Title:        "Horários disponíveis",
		Body:         "Esses são os próximos horários livres. Qual fica melhor para você?",
		ButtonText:   "Escolher horário",
		SectionTitle: "Horários",
	}
	for i, slot := range slots {
		list.Options = append(list.Options, messaging.ChoiceOption{
			ID:    fmt.Sprintf("%s%d", models.IntentSlotPrefix, i+1),
			Label: slot.Label,
		})
	}
	return list
}

// Scripted replies.
const (
	scriptFeedbackNegative = "Poxa, que pena que não foi o que você esperava. 😔 Seu feedback é muito importante: o que podemos melhorar?"
	scriptInterestFuture   = "Sem problemas! Vou guardar seu contato e te aviso quando abrir a próxima turma. 😊"
	scriptNoInterest       = "Tudo bem, obrigado pela sinceridade! Se mudar de ideia, é só chamar por aqui. 😊"
	scriptPreferChannel    = "Combinado! Vou te passar todas as informações por aqui mesmo. Me conta: qual área te interessa mais?"
	scriptPreferEmail      = "Perfeito! Me passa seu melhor e-mail que eu envio todos os detalhes. 📧"
	scriptNoTime           = "Sem problemas! Daqui a alguns dias eu te chamo de novo para ver se melhora para você. 😊"
	scriptEmailThanks      = "Obrigado! 📧 Vou te enviar todos os detalhes por e-mail ainda hoje."
	scriptNoSlots          = "Nossa agenda está cheia nos próximos dias. 😅 Vou te chamar assim que abrir um horário, combinado?"
	scriptSnapshotExpired  = "Deixa eu verificar os horários de novo!"
	scriptSlotUnavailable  = "Ops, esse horário não está mais disponível."
	scriptAlreadyBooked    = "Você já tem uma reunião agendada nesse horário! 😉"
	scriptBookingFailed    = "Tive um problema para agendar agora. 😅 Pode escolher o horário de novo, por favor?"
	scriptFollowUp         = "Oi! Tudo bem? 😊 Você comentou que estava sem tempo. Melhorou sua agenda? Posso te mostrar os próximos horários livres!"
)

// scriptBookingConfirmed renders the final confirmation. The Meet link is
// appended when the calendar returned one.
func scriptBookingConfirmed(label, meetLink string) string {
	msg := fmt.Sprintf("Pronto! ✅\n\nAgendado para %s.\nVou te enviar um lembrete antes da reunião.", label)
	if meetLink != "" {
		msg += "\n\nLink da chamada: " + meetLink
	}
	return msg
}

// stageFallbacks are the scripted replies used in free conversation when no
// generation client is configured or generation fails.
var stageFallbacks = map[models.Stage]string{
	models.StageInitial:            "Oi! Tudo bem? Aqui é da equipe do seminário. Como posso te ajudar? 😊",
	models.StagePostFeedbackPrompt: "Adoraria saber sua opinião sobre o seminário! Pode escolher uma das opções ou escrever com suas palavras.",
	models.StagePostFeedback:       "Obrigado pelo retorno! Posso te contar mais sobre a pós-graduação com desconto para participantes?",
	models.StagePostInterest:       "Que bom! Quer agendar uma conversa rápida de 15 minutos para tirar suas dúvidas?",
	models.StagePostMeetingPref:    "Combinado! Qualquer coisa é só me chamar por aqui. 😊",
	models.StagePostMeetingAccept:  "Escolhe um dos horários que te enviei que eu já confirmo o agendamento!",
	models.StageEmailProvided:      "Recebi seu e-mail! Vou te enviar os detalhes ainda hoje. 📧",
	models.StagePostEmail:          "Já te enviei os detalhes por e-mail! Qualquer dúvida é só chamar por aqui.",
	models.StageFreeConversation:   "Entendi! Posso te ajudar com informações sobre a pós-graduação, valores e horários. O que você gostaria de saber?",
}

// fallbackForStage never returns empty copy.
func fallbackForStage(stage models.Stage) string {
	if msg, ok := stageFallbacks[stage]; ok {
		return msg
	}
	return stageFallbacks[models.StageFreeConversation]
}

// stageStrategies steer the generation prompt per funnel position.
var stageStrategies = map[models.Stage]string{
	models.StageInitial:            "O lead ainda não respondeu nada. Cumprimente e pergunte o que achou do seminário.",
	models.StagePostFeedbackPrompt: "Você acabou de pedir feedback sobre o seminário. Interprete a resposta como avaliação do evento e conduza para a oferta da pós-graduação.",
	models.StagePostFeedback:       "O lead já avaliou o seminário. Apresente a pós-graduação com 5% de desconto e pergunte sobre interesse.",
	models.StagePostInterest:       "O lead demonstrou interesse na pós-graduação. Proponha uma reunião rápida de 15 minutos.",
	models.StagePostMeetingPref:    "O lead já escolheu como prefere continuar a conversa. Respeite a preferência e ajude no que for perguntado.",
	models.StagePostMeetingAccept:  "O lead aceitou a reunião e recebeu horários. Oriente a escolher um dos horários enviados.",
	models.StageEmailProvided:      "A mensagem atual traz o e-mail do lead. Agradeça e confirme que os detalhes serão enviados.",
	models.StagePostEmail:          "O lead informou o e-mail. Confirme o envio dos detalhes e se coloque à disposição.",
	models.StageFreeConversation:   "Conversa aberta. Responda a dúvida do lead e, quando fizer sentido, conduza para a pós-graduação.",
}

// systemPromptBase is the persona shared by all generated replies.
const systemPromptBase = "Você é um consultor comercial simpático de uma instituição de ensino, conversando por WhatsApp com participantes de um seminário. " +
	"Responda em português do Brasil, em no máximo três frases curtas, sem inventar preços ou datas."

// buildSystemPrompt composes persona, stage strategy and optional knowledge
// context into the generation system prompt.
func buildSystemPrompt(stage models.Stage, knowledge string) string {
	prompt := systemPromptBase + "\n\nSituação atual: " + stageStrategy(stage)
	if knowledge != "" {
		prompt += "\n\nInformações que você pode usar:\n" + knowledge
	}
	return prompt
}

func stageStrategy(stage models.Stage) string {
	if s, ok := stageStrategies[stage]; ok {
		return s
	}
	return stageStrategies[models.StageFreeConversation]
}
