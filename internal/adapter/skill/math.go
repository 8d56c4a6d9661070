// Package skill implements the demonstration agents hosted by the mesh:
// math, weather, knowledge, and travel. Each agent exposes a capability
// card for routing and a Handler for dispatch.
package skill

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"agentmesh/internal/domain"
)

var (
	arithmeticRe = regexp.MustCompile(`(\d+(\.\d+)?)\s*([\+\-\*\/\^])\s*(\d+(\.\d+)?)`)
	equationRe   = regexp.MustCompile(`(\d*x)\s*([\+\-])\s*(\d+)\s*=\s*(\d+)`)
	sqrtRe       = regexp.MustCompile(`square root of (\d+(\.\d+)?)`)
)

// MathAgent solves arithmetic expressions, simple linear equations, and
// square roots found in free-form queries.
type MathAgent struct{}

func NewMathAgent() *MathAgent { return &MathAgent{} }

// Card describes the agent's routing surface.
func (a *MathAgent) Card() *domain.AgentCard {
	return &domain.AgentCard{
		Name:        "Math Agent",
		Description: "Performs mathematical calculations and solves math problems",
		Version:     "1.0.0",
		Skills: []domain.AgentSkill{
			{
				Name:        "Basic Arithmetic",
				Description: "Perform basic arithmetic operations like addition, subtraction, multiplication, and division",
				Tags:        []string{"math", "arithmetic", "calculate", "add", "subtract", "multiply", "divide"},
				Examples:    []string{"What is 24 * 7?", "Calculate 156 / 12"},
			},
			{
				Name:        "Advanced Math",
				Description: "Solve more complex math problems including algebra and equations",
				Tags:        []string{"math", "algebra", "equation", "solve", "evaluate", "expression"},
				Examples:    []string{"Solve the equation 3x + 7 = 22", "What is the value of x in 2x - 5 = 11?"},
			},
		},
	}
}

// Handle implements domain.Handler.
func (a *MathAgent) Handle(ctx context.Context, msg domain.Message) (domain.Message, error) {
	query, _ := msg.Content.ExtractText()
	return domain.NewAgentReply(msg, domain.TextContent(a.solve(query))), nil
}

func (a *MathAgent) solve(query string) string {
	if m := arithmeticRe.FindStringSubmatch(query); m != nil {
		num1, _ := strconv.ParseFloat(m[1], 64)
		op := m[3]
		num2, _ := strconv.ParseFloat(m[4], 64)

		var result float64
		switch op {
		case "+":
			result = num1 + num2
		case "-":
			result = num1 - num2
		case "*":
			result = num1 * num2
		case "/":
			if num2 == 0 {
				return "Error: Division by zero is not allowed."
			}
			result = num1 / num2
		case "^":
			result = math.Pow(num1, num2)
		}
		return fmt.Sprintf("The result of %s %s %s is %s",
			formatOperand(num1), op, formatOperand(num2), formatResult(result))
	}

	if m := equationRe.FindStringSubmatch(query); m != nil {
		xTerm := m[1]
		op := m[2]
		c1, _ := strconv.Atoi(m[3])
		c2, _ := strconv.Atoi(m[4])

		coefficient := 1
		if xTerm != "x" {
			coefficient, _ = strconv.Atoi(strings.TrimSuffix(xTerm, "x"))
		}
		if coefficient == 0 {
			return "I couldn't understand or solve the mathematical problem. Please provide a clearer expression or equation."
		}

		var x float64
		if op == "+" {
			x = float64(c2-c1) / float64(coefficient)
		} else {
			x = float64(c2+c1) / float64(coefficient)
		}
		return fmt.Sprintf("Solving the equation %s %s %d = %d:\nx = %s",
			xTerm, op, c1, c2, formatResult(x))
	}

	if strings.Contains(strings.ToLower(query), "square root") {
		if m := sqrtRe.FindStringSubmatch(strings.ToLower(query)); m != nil {
			num, _ := strconv.ParseFloat(m[1], 64)
			return fmt.Sprintf("The square root of %s is %s",
				formatOperand(num), formatResult(math.Sqrt(num)))
		}
	}

	return "I couldn't understand or solve the mathematical problem. Please provide a clearer expression or equation."
}

// formatOperand renders parsed numbers the way they appear in answers:
// whole values keep one decimal place so "12" reads back as "12.0".
func formatOperand(f float64) string {
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatResult drops the fraction entirely for whole results.
func formatResult(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var _ domain.Handler = (*MathAgent)(nil)
