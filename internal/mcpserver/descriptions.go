package mcpserver

// Tool descriptions carry interpretation guidance for LLM clients.

func describeAnalyzeSource() string {
	return `Analyzes one Python source text: structural metrics, code smells and semantic issues.

USE WHEN:
- Reviewing a snippet or a file that is not on disk
- Checking a function before proposing it as a change
- Explaining why a division or condition is suspicious

INTERPRETING RESULTS:
- complexity is 1 + branching constructs (if, elif, for, while, except, boolean operator)
- high_complexity, long_function, too_many_parameters, deep_nesting: severity high at twice the threshold or more
- certain_zero_divisor: the divisor is the literal 0, the division always fails
- possible_zero_divisor: nothing rules out a zero divisor on some path
- always_true_condition / always_false_condition: the if test never varies
- Compound conditions (and/or) are never reported as tautologies

METRICS RETURNED:
- total_lines, effective_lines, class_count, import_count
- functions: name, start_line, line_count, param_count, complexity
- smells and issues with function and line`
}

func describeAnalyzePaths() string {
	return `Analyzes Python files under the given paths and summarizes the project.

USE WHEN:
- Auditing a package or repository checkout
- Finding the most complex functions and risky divisions across a codebase
- Comparing quality before and after a refactoring

INTERPRETING RESULTS:
- failures lists files that could not be parsed; they carry no metrics
- summary.complexity gives mean, std_dev, p50, p90 and max function complexity
- p90 above the max_complexity threshold means complexity is widespread, not isolated
- issues_by_kind separates certain from possible divisors

METRICS RETURNED:
- reports: one per analyzed file, same shape as analyze_source
- failures: path and error
- summary: files, analyzed, failed, lines, functions, classes, imports, smells and issues by kind`
}
