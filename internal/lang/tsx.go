package lang

func init() {
	Register(&LanguageSpec{
		Language:       TSX,
		FileExtensions: []string{".tsx"},
		FunctionNodeTypes: []string{
			"function_declaration",
			"generator_function_declaration",
			"function_expression",
			"arrow_function",
			"method_definition",
		},
		CallNodeTypes: []string{"call_expression"},

		LoopNodeTypes:        []string{"for_statement", "for_in_statement", "while_statement", "do_statement"},
		ConditionalNodeTypes: []string{"if_statement", "ternary_expression", "switch_statement"},

		ThrowNodeTypes: []string{"throw_statement"},
		CatchNodeTypes: []string{"catch_clause"},
		TryNodeTypes:   []string{"try_statement"},
		AwaitNodeTypes: []string{"await_expression"},
	})
}
