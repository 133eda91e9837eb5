package payment

import "strings"

var InstructionMap = map[Method][]string{
	MethodCOD: {
		"Your order will be delivered to the selected address",
		"Keep {{amount}} ready in cash when the courier arrives",
		"Pay the courier directly and keep the receipt",
	},

	MethodCard: {
		"Enter the card number, expiry date and CVV",
		"A one-time code is sent to your registered email",
		"Enter the 6-digit code to authorise {{amount}} for order {{order_id}}",
	},

	MethodWallet: {
		"Open any UPI app and scan the QR code",
		"Check that the payee is {{payee}} and the amount is {{amount}}",
		"Approve the payment in your app",
		"Come back and confirm once the app shows success",
	},
}

func GetInstructions(method Method) []string {
	if steps, ok := InstructionMap[method]; ok {
		return steps
	}

	return []string{
		"Follow the payment instructions shown on this page",
	}
}

type InstructionVars map[string]string

func InjectVariables(
	steps []string,
	vars InstructionVars,
) []string {
	result := make([]string, 0, len(steps))

	for _, step := range steps {
		updated := step
		for key, value := range vars {
			updated = strings.ReplaceAll(
				updated,
				"{{"+key+"}}",
				value,
			)
		}
		result = append(result, updated)
	}

	return result
}

// Instructions returns the steps for method with the order details filled in.
func Instructions(method Method, amount int64, orderID, payee string) []string {
	return InjectVariables(GetInstructions(method), InstructionVars{
		"amount":   FormatAmount(amount),
		"order_id": orderID,
		"payee":    payee,
	})
}
